package config

import "time"

// Config is the complete tranq configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	API        APIConfig        `yaml:"api,omitempty"`
	Journal    JournalConfig    `yaml:"journal,omitempty"`

	// SourceHash is the blake3 hash of the loaded config file, for
	// integrity display. Empty when the config came from Defaults().
	SourceHash string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// DispatcherConfig defines the sweep options. Intervals are plain
// milliseconds.
type DispatcherConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
	ItemTimeoutMS  int `yaml:"item_timeout_ms"`
}

// PollInterval returns the sweep interval as a duration.
func (d DispatcherConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMS) * time.Millisecond
}

// ItemTimeout returns the max queue age as a duration.
func (d DispatcherConfig) ItemTimeout() time.Duration {
	return time.Duration(d.ItemTimeoutMS) * time.Millisecond
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// APIKey is the bearer token protecting mutating endpoints. Empty
	// disables auth (local use only).
	APIKey string `yaml:"api_key"`
}

// JournalConfig defines settlement journal storage. An empty path disables
// the journal.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Defaults returns a Config with stock settings.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "tranq",
			LogLevel: "info",
		},
		Dispatcher: DispatcherConfig{
			PollIntervalMS: 5000,
			ItemTimeoutMS:  15000,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Journal: JournalConfig{
			Path: "./data/journal.db",
		},
	}
}
