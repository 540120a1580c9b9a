// Package schemas embeds the JSON Schema artifacts describing each stream's
// record shape. The schemas are generated offline against the live API and
// checked in; every property is nullable. They are consumed as static
// inputs and handed to the connector as an explicit name-to-schema mapping.
package schemas

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed *.json
var files embed.FS

// For returns the raw JSON Schema for a stream.
func For(stream string) ([]byte, error) {
	data, err := files.ReadFile(stream + ".json")
	if err != nil {
		return nil, fmt.Errorf("no schema for stream %q: %w", stream, err)
	}
	return data, nil
}

// All returns the complete name-to-schema mapping.
func All() (map[string][]byte, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".json")
		data, err := files.ReadFile(entry.Name())
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

// Streams returns the stream names that have a schema.
func Streams() ([]string, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}
