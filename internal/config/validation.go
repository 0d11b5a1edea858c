package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/khanglvm/toolgate/internal/log"
)

// Validate checks the whole configuration and reports every problem at once
// as a *ValidationError.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, v ...any) {
		problems = append(problems, fmt.Sprintf(format, v...))
	}

	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ValidateServer(name, c.Servers[name]); err != nil {
			add("%v", err)
		}
	}

	s := c.Settings
	if s == nil {
		return finish(problems)
	}
	if s.Search.DefaultLimit < 1 {
		add("search.defaultLimit must be at least 1, got %d", s.Search.DefaultLimit)
	}
	if s.Search.MaxLimit < s.Search.DefaultLimit {
		add("search.maxLimit (%d) must not be below search.defaultLimit (%d)", s.Search.MaxLimit, s.Search.DefaultLimit)
	}
	if s.Search.OverfetchFactor < 1 {
		add("search.overfetchFactor must be at least 1, got %d", s.Search.OverfetchFactor)
	}
	if s.Search.MinSimilarity < 0 || s.Search.MinSimilarity > 1 {
		add("search.minSimilarity must be within [0, 1], got %v", s.Search.MinSimilarity)
	}
	if s.Search.KeywordWeight < 0 || s.Search.KeywordWeight > 1 {
		add("search.keywordWeight must be within [0, 1], got %v", s.Search.KeywordWeight)
	}
	if s.Execution.TimeoutSeconds < 1 {
		add("execution.timeoutSeconds must be at least 1, got %d", s.Execution.TimeoutSeconds)
	}
	if s.Index.Parallelism < 1 {
		add("index.indexParallelism must be at least 1, got %d", s.Index.Parallelism)
	}
	if s.ProcessPoolSize < 1 {
		add("processPoolSize must be at least 1, got %d", s.ProcessPoolSize)
	}
	switch s.Embedder.Provider {
	case ProviderHash, ProviderOpenAI:
	default:
		add("embedder.provider must be %q or %q, got %q", ProviderHash, ProviderOpenAI, s.Embedder.Provider)
	}
	if s.Embedder.Dimensions < 0 {
		add("embedder.dimensions must not be negative, got %d", s.Embedder.Dimensions)
	}
	switch s.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		add("store.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, s.Store.Driver)
	}
	if !log.ValidLevel(s.LogLevel) {
		add("logLevel %q is not one of debug, info, warn, error, fatal", s.LogLevel)
	}
	if s.History.RetentionDays < 0 {
		add("history.retentionDays must not be negative, got %d", s.History.RetentionDays)
	}

	return finish(problems)
}

func finish(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// IsSelfReference reports whether server would spawn toolgate itself.
func IsSelfReference(server *ServerConfig) bool {
	binaryName := filepath.Base(os.Args[0])
	if server.Command == binaryName || filepath.Base(server.Command) == "toolgate" {
		return true
	}
	if server.Command == "npx" {
		for _, arg := range server.Args {
			if arg == "toolgate" || arg == "@khanglvm/toolgate" {
				return true
			}
		}
	}
	return false
}

// ValidateServer checks one server entry.
func ValidateServer(name string, server *ServerConfig) error {
	if server == nil || server.Command == "" {
		return fmt.Errorf("server '%s': empty command", name)
	}
	if IsSelfReference(server) {
		return fmt.Errorf("server '%s': self-reference detected (toolgate cannot spawn itself)", name)
	}
	return nil
}
