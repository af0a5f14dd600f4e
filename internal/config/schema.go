package config

import "time"

// Family selects the targeted service family and with it the probing
// strategy and port policy.
type Family string

const (
	FamilyOllama   Family = "ollama"
	FamilyLlamaCpp Family = "llamacpp"
)

// Valid reports whether the family is a known value.
func (f Family) Valid() bool {
	return f == FamilyOllama || f == FamilyLlamaCpp
}

// Config is the root configuration structure.
type Config struct {
	Family    Family          `yaml:"family"`
	Shodan    ShodanConfig    `yaml:"shodan"`
	Queries   QueriesConfig   `yaml:"queries"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Probe     ProbeConfig     `yaml:"probe"`
	Database  DatabaseConfig  `yaml:"database"`
	Output    OutputConfig    `yaml:"output"`
}

// ShodanConfig holds the search-index credential. The SHODAN_API_KEY
// environment variable overrides the file value.
type ShodanConfig struct {
	APIKey string `yaml:"api_key"`
}

// QueriesConfig overrides the built-in query lists per family. An empty
// list keeps the defaults.
type QueriesConfig struct {
	Ollama   []string `yaml:"ollama,omitempty"`
	LlamaCpp []string `yaml:"llamacpp,omitempty"`
}

// DiscoveryConfig tunes search pagination.
type DiscoveryConfig struct {
	PageLimit int      `yaml:"page_limit"`
	PageSize  int      `yaml:"page_size"`
	PageDelay Duration `yaml:"page_delay"`
}

// ProbeConfig tunes the probing phase.
type ProbeConfig struct {
	Timeout     Duration `yaml:"timeout"`
	Concurrency int      `yaml:"concurrency"`
}

// DatabaseConfig controls run-history persistence.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// OutputConfig controls report writing. An empty path means a timestamped
// file in the working directory.
type OutputConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Duration wraps time.Duration for YAML round-tripping as "5s"-style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
