// Package config provides configuration schema and persistence for mcpstream.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaVersion is the current config schema version.
const SchemaVersion = 1

// Environment variables that override the config file.
const (
	EnvServerURL  = "MCPSTREAM_SERVER_URL"
	EnvCredential = "MCPSTREAM_CREDENTIAL"
	EnvLogLevel   = "MCPSTREAM_LOG_LEVEL"
)

// Provider names a chat model backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Defaults for the chat orchestrator.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
	DefaultMaxRounds      = 8
)

// Duration is a time.Duration that reads "30s" style strings or plain
// integer seconds from YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if value.ShortTag() == "!!int" {
		secs, err := strconv.Atoi(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid duration %q", value.Line, value.Value)
		}
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// IsZero lets omitempty drop unset durations.
func (d Duration) IsZero() bool {
	return d.Duration == 0
}

// LLMConfig configures the chat orchestrator.
type LLMConfig struct {
	Provider  Provider `yaml:"provider,omitempty"`
	Model     string   `yaml:"model,omitempty"`
	APIKeyEnv string   `yaml:"api_key_env,omitempty"` // defaults to OPENAI_API_KEY / ANTHROPIC_API_KEY
	BaseURL   string   `yaml:"base_url,omitempty"`
	MaxTools  int      `yaml:"max_tools,omitempty"`
	MaxRounds int      `yaml:"max_rounds,omitempty"`
	System    string   `yaml:"system,omitempty"`
}

// Config is the root configuration structure.
type Config struct {
	SchemaVersion int `yaml:"schema_version"`

	// Endpoint and authentication
	ServerURL        string            `yaml:"server_url"`
	CredentialHeader string            `yaml:"credential_header,omitempty"`
	CredentialEnv    string            `yaml:"credential_env,omitempty"`   // env var holding the credential
	CredentialStore  string            `yaml:"credential_store,omitempty"` // "auto" (default), "keyring", or "file"
	SessionHeader    string            `yaml:"session_header,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty"`

	// Handshake identity
	ClientName      string `yaml:"client_name,omitempty"`
	ClientVersion   string `yaml:"client_version,omitempty"`
	ProtocolVersion string `yaml:"protocol_version,omitempty"`

	InitTimeout  Duration `yaml:"init_timeout,omitempty"`
	ReadTimeout  Duration `yaml:"read_timeout,omitempty"`
	StrictFrames bool     `yaml:"strict_frames,omitempty"`

	LLM LLMConfig `yaml:"llm,omitempty"`

	LastModified time.Time `yaml:"last_modified,omitempty"`
}

// NewConfig creates a new empty configuration with default values.
func NewConfig() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
		},
		LastModified: time.Now(),
	}
}

// ApplyEnv overrides file settings with environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.ServerURL = v
	}
}

var (
	headerNameRe = regexp.MustCompile("^[!#$%&'*+.^_`|~0-9A-Za-z-]+$")
	envVarRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate checks the settings needed to talk to a server.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required (or set %s)", EnvServerURL)
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server_url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server_url has no host")
	}

	for field, name := range map[string]string{
		"credential_header": c.CredentialHeader,
		"session_header":    c.SessionHeader,
	} {
		if name != "" && !headerNameRe.MatchString(name) {
			return fmt.Errorf("%s: invalid header name %q", field, name)
		}
	}
	for name := range c.Headers {
		if !headerNameRe.MatchString(name) {
			return fmt.Errorf("headers: invalid header name %q", name)
		}
	}

	if err := ValidateEnvVarName(c.CredentialEnv); err != nil {
		return fmt.Errorf("credential_env: %w", err)
	}

	switch c.CredentialStore {
	case "", "auto", "keyring", "file":
	default:
		return fmt.Errorf("credential_store: unknown mode %q", c.CredentialStore)
	}

	if c.InitTimeout.Duration < 0 || c.ReadTimeout.Duration < 0 {
		return errors.New("timeouts must not be negative")
	}

	switch c.LLM.Provider {
	case "", ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("llm.provider: unknown provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxTools < 0 || c.LLM.MaxRounds < 0 {
		return errors.New("llm limits must not be negative")
	}
	if err := ValidateEnvVarName(c.LLM.APIKeyEnv); err != nil {
		return fmt.Errorf("llm.api_key_env: %w", err)
	}
	return nil
}

// ValidateEnvVarName checks that name can be used as an environment variable.
// An empty name is valid and means "not set".
func ValidateEnvVarName(name string) error {
	if name == "" {
		return nil
	}
	if !envVarRe.MatchString(name) {
		return fmt.Errorf("invalid environment variable name %q", name)
	}
	return nil
}

// ModelName returns the configured model or the provider default.
func (l LLMConfig) ModelName() string {
	if l.Model != "" {
		return l.Model
	}
	if l.Provider == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultOpenAIModel
}

// APIKeyVar returns the environment variable holding the provider API key.
func (l LLMConfig) APIKeyVar() string {
	if l.APIKeyEnv != "" {
		return l.APIKeyEnv
	}
	if l.Provider == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Rounds returns the tool-calling round limit.
func (l LLMConfig) Rounds() int {
	if l.MaxRounds > 0 {
		return l.MaxRounds
	}
	return DefaultMaxRounds
}
