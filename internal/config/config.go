/*
Package config handles loading, saving and validating toolgate configuration.

Configuration is stored in ~/.toolgate.json using camelCase keys:

	{
	  "servers": {
	    "weather": {
	      "command": "npx",
	      "args": ["-y", "@acme/weather-mcp"],
	      "env": {"API_KEY": "..."},
	      "category": "weather"
	    }
	  },
	  "settings": {
	    "search": {"defaultLimit": 5, "maxLimit": 20, "overfetchFactor": 3},
	    "execution": {"timeoutSeconds": 30},
	    "embedder": {"provider": "hash"},
	    "store": {"driver": "memory"},
	    "logLevel": "info"
	  }
	}

Values missing from the file take their defaults, and TOOLGATE_* environment
variables override the file.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration.
type Config struct {
	// Servers maps server names to child MCP servers whose tools join the catalog.
	Servers map[string]*ServerConfig `json:"servers"`

	Settings *Settings `json:"settings,omitempty"`
}

// ServerConfig describes one child MCP server.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// Category is attached to every tool of the server. Empty means the server name.
	Category string `json:"category,omitempty"`

	// Source records where the entry came from, e.g. "manual".
	Source string `json:"source,omitempty"`
}

// Settings holds global options.
type Settings struct {
	Search    SearchSettings    `json:"search"`
	Execution ExecutionSettings `json:"execution"`
	Index     IndexSettings     `json:"index"`
	Embedder  EmbedderSettings  `json:"embedder"`
	Store     StoreSettings     `json:"store"`
	History   HistorySettings   `json:"history"`

	// ProcessPoolSize is the max number of live child server processes.
	ProcessPoolSize int `json:"processPoolSize,omitempty"`

	// CatalogPath is an optional YAML overlay over built-in descriptors.
	CatalogPath string `json:"catalogPath,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`
}

// SearchSettings tune the search engine.
type SearchSettings struct {
	DefaultLimit    int     `json:"defaultLimit,omitempty"`
	MaxLimit        int     `json:"maxLimit,omitempty"`
	OverfetchFactor int     `json:"overfetchFactor,omitempty"`
	MinSimilarity   float64 `json:"minSimilarity,omitempty"`

	// KeywordWeight enables hybrid ranking when positive.
	KeywordWeight float64 `json:"keywordWeight,omitempty"`

	TimeoutSeconds int `json:"searchTimeoutSeconds,omitempty"`
}

// ExecutionSettings tune the execution engine.
type ExecutionSettings struct {
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`
}

// IndexSettings tune the indexer.
type IndexSettings struct {
	Parallelism    int  `json:"indexParallelism,omitempty"`
	BuildOnStartup bool `json:"buildOnStartup"`
}

// Embedder providers.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// EmbedderSettings select the embedding model.
type EmbedderSettings struct {
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	BaseURL    string `json:"baseURL,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `json:"apiKeyEnv,omitempty"`

	// Cache persists embeddings in the history database.
	Cache bool `json:"cache"`
}

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// StoreSettings select the vector store.
type StoreSettings struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// HistorySettings control search and execution history.
type HistorySettings struct {
	Enabled       bool   `json:"enabled"`
	Path          string `json:"path,omitempty"`
	RetentionDays int    `json:"retentionDays,omitempty"`
}

// Defaults.
const (
	DefaultLimit           = 5
	DefaultMaxLimit        = 20
	DefaultOverfetchFactor = 3
	DefaultSearchTimeout   = 10
	DefaultTimeoutSeconds  = 30
	DefaultParallelism     = 4
	DefaultProcessPoolSize = 3
	DefaultRetentionDays   = 90
	DefaultLogLevel        = "info"
	DefaultAPIKeyEnv       = "OPENAI_API_KEY"
)

// NewConfig returns a configuration with every default applied.
func NewConfig() *Config {
	cfg := &Config{Servers: make(map[string]*ServerConfig)}
	cfg.ApplyDefaults()
	return cfg
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		Search: SearchSettings{
			DefaultLimit:    DefaultLimit,
			MaxLimit:        DefaultMaxLimit,
			OverfetchFactor: DefaultOverfetchFactor,
			TimeoutSeconds:  DefaultSearchTimeout,
		},
		Execution: ExecutionSettings{TimeoutSeconds: DefaultTimeoutSeconds},
		Index:     IndexSettings{Parallelism: DefaultParallelism, BuildOnStartup: true},
		Embedder:  EmbedderSettings{Provider: ProviderHash, APIKeyEnv: DefaultAPIKeyEnv, Cache: true},
		Store:     StoreSettings{Driver: DriverMemory},
		History:   HistorySettings{Enabled: true, RetentionDays: DefaultRetentionDays},

		ProcessPoolSize: DefaultProcessPoolSize,
		LogLevel:        DefaultLogLevel,
	}
}

// ApplyDefaults fills zero-valued numeric and string settings.
func (c *Config) ApplyDefaults() {
	if c.Servers == nil {
		c.Servers = make(map[string]*ServerConfig)
	}
	if c.Settings == nil {
		c.Settings = DefaultSettings()
		return
	}

	d := DefaultSettings()
	s := c.Settings
	setInt(&s.Search.DefaultLimit, d.Search.DefaultLimit)
	setInt(&s.Search.MaxLimit, d.Search.MaxLimit)
	setInt(&s.Search.OverfetchFactor, d.Search.OverfetchFactor)
	setInt(&s.Search.TimeoutSeconds, d.Search.TimeoutSeconds)
	setInt(&s.Execution.TimeoutSeconds, d.Execution.TimeoutSeconds)
	setInt(&s.Index.Parallelism, d.Index.Parallelism)
	setInt(&s.ProcessPoolSize, d.ProcessPoolSize)
	setInt(&s.History.RetentionDays, d.History.RetentionDays)
	setString(&s.Embedder.Provider, d.Embedder.Provider)
	setString(&s.Embedder.APIKeyEnv, d.Embedder.APIKeyEnv)
	setString(&s.Store.Driver, d.Store.Driver)
	setString(&s.LogLevel, d.LogLevel)
	if s.Search.DefaultLimit > s.Search.MaxLimit {
		s.Search.DefaultLimit = s.Search.MaxLimit
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

// ExecutionTimeout returns the execution timeout as a duration.
func (s *Settings) ExecutionTimeout() time.Duration {
	return time.Duration(s.Execution.TimeoutSeconds) * time.Second
}

// SearchTimeout returns the search timeout as a duration.
func (s *Settings) SearchTimeout() time.Duration {
	return time.Duration(s.Search.TimeoutSeconds) * time.Second
}

// Retention returns the history retention window.
func (s *Settings) Retention() time.Duration {
	return time.Duration(s.History.RetentionDays) * 24 * time.Hour
}

// GetDefaultConfigPath returns the path to ~/.toolgate.json.
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".toolgate.json"), nil
}

// Load reads the configuration from the default path, applies defaults and
// environment overrides, and validates the result.
func Load() (*Config, error) {
	path, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadOrCreate(path)
}

// LoadOrCreate loads path, falling back to defaults when the file does not
// exist. The file is never created implicitly.
func LoadOrCreate(path string) (*Config, error) {
	cfg, err := LoadFrom(path)
	var notFound *ConfigNotFoundError
	switch {
	case errors.As(err, &notFound):
		cfg = NewConfig()
	case err != nil:
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
