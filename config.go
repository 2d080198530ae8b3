package vocaresume

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	defaults "github.com/vocaresume/vocaresume/default"
)

// Config represents the vocaresume configuration.
type Config struct {
	Version   int             `toml:"version" json:"version"`
	Embedding EmbeddingConfig `toml:"embedding" json:"embedding"`
	Store     StoreConfig     `toml:"store" json:"store"`
	Router    RouterConfig    `toml:"router" json:"router"`
	Server    ServerConfig    `toml:"server" json:"server"`
}

// EmbeddingConfig holds settings for the embedding ladder.
type EmbeddingConfig struct {
	BaseURL             string                  `toml:"base_url" json:"base_url"`
	APIKey              string                  `toml:"api_key" json:"api_key"`
	Model               string                  `toml:"model" json:"model"`
	Dimensions          int                     `toml:"dimensions,omitempty" json:"dimensions,omitempty"`
	CacheTTLMinutes     int                     `toml:"cache_ttl_minutes,omitempty" json:"cache_ttl_minutes,omitempty"`
	ProbeTimeoutSeconds int                     `toml:"probe_timeout_seconds,omitempty" json:"probe_timeout_seconds,omitempty"`
	Local               LocalEmbeddingConfig    `toml:"local" json:"local"`
	Fallback            FallbackEmbeddingConfig `toml:"fallback" json:"fallback"`
}

// LocalEmbeddingConfig points the second rung at a local OpenAI-compatible server.
type LocalEmbeddingConfig struct {
	Enabled *bool  `toml:"enabled,omitempty" json:"enabled,omitempty"`
	BaseURL string `toml:"base_url" json:"base_url"`
	Model   string `toml:"model" json:"model"`
}

// FallbackEmbeddingConfig configures the hash pseudo-embedding.
type FallbackEmbeddingConfig struct {
	Dimensions int `toml:"dimensions,omitempty" json:"dimensions,omitempty"`
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	// PersistDir keeps the collection durable across restarts. Empty means in-memory.
	PersistDir string `toml:"persist_dir" json:"persist_dir"`
	Collection string `toml:"collection" json:"collection"`
}

// RouterConfig holds routing settings.
type RouterConfig struct {
	TopK          int   `toml:"top_k,omitempty" json:"top_k,omitempty"`
	RecordHistory *bool `toml:"record_history,omitempty" json:"record_history,omitempty"`
}

// ServerConfig holds daemon settings.
type ServerConfig struct {
	SessionTTLMinutes int    `toml:"session_ttl_minutes,omitempty" json:"session_ttl_minutes,omitempty"`
	MetricsAddr       string `toml:"metrics_addr" json:"metrics_addr"`
}

// ConfigDir returns the config directory path.
// Resolution order: $VOCARESUME_CONFIG_DIR > $XDG_CONFIG_HOME/vocaresume > ~/.config/vocaresume
func ConfigDir() string {
	if dir := os.Getenv("VOCARESUME_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "vocaresume")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "vocaresume-config")
	}
	return filepath.Join(home, ".config", "vocaresume")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("vocaresume: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg, DefaultConfig())
	return &cfg, nil
}

// applyDefaults fills zero fields of cfg from def.
func applyDefaults(cfg, def *Config) {
	if cfg.Version == 0 {
		cfg.Version = def.Version
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.CacheTTLMinutes == 0 {
		cfg.Embedding.CacheTTLMinutes = def.Embedding.CacheTTLMinutes
	}
	if cfg.Embedding.ProbeTimeoutSeconds == 0 {
		cfg.Embedding.ProbeTimeoutSeconds = def.Embedding.ProbeTimeoutSeconds
	}
	if cfg.Embedding.Local.Enabled == nil {
		cfg.Embedding.Local.Enabled = def.Embedding.Local.Enabled
	}
	if cfg.Embedding.Local.BaseURL == "" {
		cfg.Embedding.Local.BaseURL = def.Embedding.Local.BaseURL
	}
	if cfg.Embedding.Local.Model == "" {
		cfg.Embedding.Local.Model = def.Embedding.Local.Model
	}
	if cfg.Embedding.Fallback.Dimensions == 0 {
		cfg.Embedding.Fallback.Dimensions = def.Embedding.Fallback.Dimensions
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = def.Store.Collection
	}
	if cfg.Router.TopK == 0 {
		cfg.Router.TopK = def.Router.TopK
	}
	if cfg.Router.RecordHistory == nil {
		cfg.Router.RecordHistory = def.Router.RecordHistory
	}
	if cfg.Server.SessionTTLMinutes == 0 {
		cfg.Server.SessionTTLMinutes = def.Server.SessionTTLMinutes
	}
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	if !EmbeddingEnabled(cfg) && !LocalEmbeddingEnabled(cfg) {
		warnings = append(warnings, "no embedding API or local embedding server configured; routing will use hash pseudo-embeddings")
	}
	if cfg.Router.TopK > 0 && cfg.Router.TopK < 4 {
		warnings = append(warnings, "router.top_k is below 4; some task labels may never be scored")
	}
	if cfg.Store.PersistDir != "" && !filepath.IsAbs(cfg.Store.PersistDir) {
		warnings = append(warnings, "store.persist_dir is relative; it resolves against the daemon's working directory")
	}
	return warnings
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $VOCARESUME_EMBEDDING_API_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	if url := os.Getenv("VOCARESUME_EMBEDDING_API_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Embedding.BaseURL
	}
	return ""
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $VOCARESUME_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	if key := os.Getenv("VOCARESUME_EMBEDDING_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Embedding.APIKey
	}
	return ""
}

// ResolveEmbeddingModel returns the embedding model name.
// Priority: $VOCARESUME_EMBEDDING_MODEL env > config value.
func ResolveEmbeddingModel(cfg *Config) string {
	if model := os.Getenv("VOCARESUME_EMBEDDING_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Embedding.Model
	}
	return ""
}

// ResolvePersistDir returns the store persistence directory.
// Priority: $VOCARESUME_PERSIST_DIR env > config value.
func ResolvePersistDir(cfg *Config) string {
	if dir := os.Getenv("VOCARESUME_PERSIST_DIR"); dir != "" {
		return dir
	}
	if cfg != nil {
		return cfg.Store.PersistDir
	}
	return ""
}

// EmbeddingEnabled returns true when both base_url and api_key are configured for embedding.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return ResolveEmbeddingBaseURL(cfg) != "" && ResolveEmbeddingAPIKey(cfg) != ""
}

// LocalEmbeddingEnabled returns whether the local embedding rung should be attempted.
func LocalEmbeddingEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Embedding.Local.BaseURL == "" {
		return false
	}
	if cfg.Embedding.Local.Enabled == nil {
		return true // default true
	}
	return *cfg.Embedding.Local.Enabled
}

// RecordHistoryEnabled returns whether routed queries are stored as query_history documents.
func RecordHistoryEnabled(cfg *Config) bool {
	if cfg == nil || cfg.Router.RecordHistory == nil {
		return true
	}
	return *cfg.Router.RecordHistory
}
