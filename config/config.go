// Package config provides configuration management for Lucid.
// Configuration is read from YAML on top of DefaultConfig, with ${VAR} and
// ${VAR:-default} references expanded before decoding, then validated.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is the system prompt used when none is configured.
const DefaultSystemPrompt = "You are a helpful assistant."

// DefaultModel is the model used when none is configured.
const DefaultModel = "gpt-4o"

var validate = validator.New()

// Config represents the complete Lucid configuration: what to send, where
// to send it, and how the web surface and logging behave.
type Config struct {
	// Model is the backend identifier. Identifiers starting with "ollama/"
	// go to the local backend when Backend.Kind is "auto".
	Model string `yaml:"model" validate:"required"`

	// SystemPrompt opens every non-dev-mode message list
	SystemPrompt string `yaml:"system_prompt"`

	// DevMode sends the raw user message only
	DevMode bool `yaml:"dev_mode"`

	Backend BackendConfig `yaml:"backend"`
	Hosted  HostedConfig  `yaml:"hosted"`
	Local   LocalConfig   `yaml:"local"`
	Stub    StubConfig    `yaml:"stub"`
	Context ContextConfig `yaml:"context"`
	Tokens  TokensConfig  `yaml:"tokens"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig selects the backend.
type BackendConfig struct {
	// Kind is one of auto, hosted, local, stub (default: auto)
	Kind string `yaml:"kind" validate:"omitempty,oneof=auto hosted local stub"`
}

// HostedConfig configures the OpenAI-compatible backend.
type HostedConfig struct {
	// APIKey authenticates against the API.
	// Use ${OPENAI_API_KEY} in the file to pull it from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API root (optional)
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// LocalConfig configures the local model server.
type LocalConfig struct {
	// Endpoint is the generate URL (default: http://localhost:11434/api/generate)
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// StubConfig configures the offline stub backend.
type StubConfig struct {
	// Output is the placeholder text returned by the stub
	Output string `yaml:"output"`
}

// ContextConfig configures the context injected before the user message.
type ContextConfig struct {
	// Layout is "chunks" (one system message per chunk) or "combined"
	// (a single "Context:" system message)
	Layout string `yaml:"layout" validate:"omitempty,oneof=chunks combined"`

	// Documents are inline context chunks, in order
	Documents []string `yaml:"documents"`

	// File is read whole and appended as one chunk after Documents
	File string `yaml:"file"`
}

// TokensConfig controls the prompt token estimate.
type TokensConfig struct {
	Enabled bool `yaml:"enabled"`

	// Encoding is the tiktoken encoding used for models tiktoken does not
	// know (default: cl100k_base)
	Encoding string `yaml:"encoding"`
}

// ServerConfig holds settings for the web surface.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It must cover a full backend round trip.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes caps request header size (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimit throttles the generate endpoints per client address
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures per-client rate limiting of the web surface.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format specifies log output format: json or text
	Format string `yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Model:        DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
		Backend: BackendConfig{
			Kind: "auto",
		},
		Local: LocalConfig{
			Endpoint: "http://localhost:11434/api/generate",
		},
		Context: ContextConfig{
			Layout: "chunks",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 30,
				Burst:             5,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// envRef matches an escaped "$${" or a ${VAR} / ${VAR:-default} reference.
var envRef = regexp.MustCompile(`\$\$\{|\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// expandEnvVars resolves environment references in s.
//
//   - "${VAR}" becomes the value of VAR (empty when unset)
//   - "${VAR:-default}" falls back to default when VAR is unset or empty
//   - "$${" is a literal "${"
//
// Any other "$" is left alone, so prompt text like "$5" or "$HOME" survives.
// Expansion is a single pass; expanded values are not expanded again.
func expandEnvVars(s string) (string, error) {
	var b strings.Builder
	last := 0
	for _, m := range envRef.FindAllStringSubmatchIndex(s, -1) {
		if err := checkUnmatched(s, last, m[0]); err != nil {
			return "", err
		}
		b.WriteString(s[last:m[0]])

		switch {
		case s[m[0]:m[1]] == "$${":
			b.WriteString("${")
		case m[4] >= 0:
			if val := os.Getenv(s[m[2]:m[3]]); val != "" {
				b.WriteString(val)
			} else {
				b.WriteString(s[m[4]+2 : m[5]])
			}
		default:
			b.WriteString(os.Getenv(s[m[2]:m[3]]))
		}
		last = m[1]
	}
	if err := checkUnmatched(s, last, len(s)); err != nil {
		return "", err
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func checkUnmatched(s string, from, to int) error {
	if i := strings.Index(s[from:to], "${"); i >= 0 {
		return fmt.Errorf("invalid syntax: malformed ${ reference at offset %d", from+i)
	}
	return nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// ApplyEnv fills credentials that the file left empty from lookup, which is
// usually os.LookupEnv. Only entry points call it; the rest of Lucid never
// reads the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if c.Hosted.APIKey == "" {
		if v, ok := lookup("OPENAI_API_KEY"); ok {
			c.Hosted.APIKey = v
		}
	}
	if c.Hosted.BaseURL == "" {
		if v, ok := lookup("OPENAI_BASE_URL"); ok {
			c.Hosted.BaseURL = v
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return err
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	if rl := c.Server.RateLimit; rl.Enabled {
		if rl.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate limit enabled with non-positive requests_per_minute: %d", rl.RequestsPerMinute)
		}
		if rl.Burst < 0 {
			return fmt.Errorf("negative rate limit burst: %d", rl.Burst)
		}
	}

	return nil
}
