package config

import (
	"errors"
	"fmt"
	"strconv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOOLGATE_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides settings from TOOLGATE_* variables. Every malformed
// value is reported, not only the first.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	c.ApplyDefaults()
	s := c.Settings

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, key, v))
			return
		}
		*dst = n
	}
	float := func(key string, dst *float64) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %q is not a number", EnvPrefix, key, v))
			return
		}
		*dst = f
	}

	str("LOG_LEVEL", &s.LogLevel)
	num("DEFAULT_LIMIT", &s.Search.DefaultLimit)
	num("MAX_LIMIT", &s.Search.MaxLimit)
	num("OVERFETCH", &s.Search.OverfetchFactor)
	float("MIN_SIMILARITY", &s.Search.MinSimilarity)
	float("KEYWORD_WEIGHT", &s.Search.KeywordWeight)
	num("TIMEOUT_SECONDS", &s.Execution.TimeoutSeconds)
	str("EMBEDDER", &s.Embedder.Provider)
	str("EMBEDDER_MODEL", &s.Embedder.Model)
	str("STORE_DRIVER", &s.Store.Driver)
	str("STORE_PATH", &s.Store.Path)
	str("CATALOG_PATH", &s.CatalogPath)

	return errors.Join(errs...)
}
