package adp

import (
	"github.com/hcmdata/adp-connector/pkg/config"
	"github.com/hcmdata/adp-connector/pkg/connector/core"
	"github.com/hcmdata/adp-connector/pkg/connector/registry"
)

func init() {
	// Register the ADP source connector in the global registry
	_ = registry.RegisterSource("adp", func(cfg *config.BaseConfig) (core.Source, error) {
		return NewSource("adp", cfg)
	})
}
