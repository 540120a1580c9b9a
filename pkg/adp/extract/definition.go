// Package extract implements the extraction engine: offset pagination,
// response classification, the per-stream executor state machine and the
// parent/child stream graph.
package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/hcmdata/adp-connector/pkg/errors"
)

// Context carries key-value data derived from a parent record into a child
// stream's request construction. It is created per parent record and never
// mutated afterwards.
type Context map[string]string

// Clone returns a copy so child invocations cannot alias the parent's map.
func (c Context) Clone() Context {
	out := make(Context, len(c)+2)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// BuildParamsFunc builds stream-specific query parameters. The bookmark is
// the stream's current replication floor, zero when none exists.
type BuildParamsFunc func(ctx Context, bookmark time.Time) url.Values

// PostProcessFunc transforms an extracted record. Returning nil filters the
// record out. Derived primary and replication keys are synthesized here.
type PostProcessFunc func(record map[string]interface{}, ctx Context) map[string]interface{}

// ChildContextFunc derives the context handed to child streams from one
// parent record.
type ChildContextFunc func(record map[string]interface{}) Context

// Definition is the static configuration of one stream. Per-stream behavior
// is plugged in through the strategy functions rather than subclassing.
type Definition struct {
	// Name identifies the stream in output and logs
	Name string
	// Path is the resource path template, with {placeholders} bound
	// from the parent context
	Path string
	// PrimaryKeys lists the record's key fields (empty = append-only)
	PrimaryKeys []string
	// ReplicationKey names the incremental bookmark field, if any
	ReplicationKey string
	// RecordsPath selects the record array within the response body
	RecordsPath string
	// Parent names the parent stream, empty for root streams
	Parent string
	// Paginated enables $top/$skip offset pagination
	Paginated bool
	// Headers are extra request headers for this stream
	Headers map[string]string
	// Rules are the ordered response classification rules
	Rules []Rule
	// BuildParams adds stream-specific query parameters, optional
	BuildParams BuildParamsFunc
	// PostProcess transforms each record, optional
	PostProcess PostProcessFunc
	// ChildContext derives per-record child context, optional
	ChildContext ChildContextFunc
}

// ResolvePath substitutes {placeholder} segments from the context. Missing
// placeholders are a validation error: a child stream must never issue a
// request with an unresolved template.
func (d *Definition) ResolvePath(ctx Context) (string, error) {
	path := d.Path
	for {
		start := strings.Index(path, "{")
		if start == -1 {
			return path, nil
		}
		end := strings.Index(path[start:], "}")
		if end == -1 {
			return "", errors.Newf(errors.ErrorTypeValidation,
				"unterminated placeholder in path template %q", d.Path)
		}
		end += start

		key := path[start+1 : end]
		value, ok := ctx[key]
		if !ok || value == "" {
			return "", errors.Newf(errors.ErrorTypeValidation,
				"path template %q requires context key %q", d.Path, key)
		}
		path = path[:start] + url.PathEscape(value) + path[end+1:]
	}
}
