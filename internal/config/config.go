// ABOUTME: Harness configuration: defaults, YAML file, STREAMCHECK_* environment overrides
// ABOUTME: Validate rejects values the server under test would reject or the run cannot honour

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mauromedda/streamcheck/internal/httputil"
)

// EnvPrefix is the prefix for environment overrides, e.g. STREAMCHECK_REQUESTS=10.
const EnvPrefix = "STREAMCHECK"

// Defaults mirror the original manual streaming check against a local model server.
const (
	DefaultBaseURL        = "http://127.0.0.1:8080"
	DefaultHealthPath     = "/health"
	DefaultCompletionPath = "/v1/chat/completions"
	DefaultModel          = "test-llama"
	DefaultPrompt         = "Hello"
	DefaultMaxTokens      = 5
	DefaultTemperature    = 0.1
	DefaultRequests       = 5
	DefaultDelay          = 2 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultHealthInterval = time.Second
)

// Config holds everything a reliability run needs.
type Config struct {
	BaseURL        string `yaml:"base_url" envconfig:"BASE_URL"`
	HealthPath     string `yaml:"health_path" envconfig:"HEALTH_PATH"`
	CompletionPath string `yaml:"completion_path" envconfig:"COMPLETION_PATH"`
	APIKey         string `yaml:"api_key" envconfig:"API_KEY"`

	Model        string  `yaml:"model" envconfig:"MODEL"`
	Prompt       string  `yaml:"prompt" envconfig:"PROMPT"`
	SystemPrompt string  `yaml:"system_prompt" envconfig:"SYSTEM_PROMPT"`
	MaxTokens    int     `yaml:"max_tokens" envconfig:"MAX_TOKENS"`
	Temperature  float64 `yaml:"temperature" envconfig:"TEMPERATURE"`

	Requests       int           `yaml:"requests" envconfig:"REQUESTS"`
	Delay          time.Duration `yaml:"delay" envconfig:"DELAY"`
	// RequestTimeout bounds the wait for response headers and, unless ChunkTimeout
	// is set, every silence between two reads of the body. It is not a cap on the
	// whole stream: a server that keeps sending may take as long as it needs.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	// ChunkTimeout overrides RequestTimeout for body reads; zero means RequestTimeout.
	ChunkTimeout time.Duration `yaml:"chunk_timeout" envconfig:"CHUNK_TIMEOUT"`
	// MaxDuration caps a whole request from send to terminator; zero means no cap.
	MaxDuration time.Duration `yaml:"max_duration" envconfig:"MAX_DURATION"`

	HealthTimeout  time.Duration `yaml:"health_timeout" envconfig:"HEALTH_TIMEOUT"`
	HealthAttempts int           `yaml:"health_attempts" envconfig:"HEALTH_ATTEMPTS"`
	HealthInterval time.Duration `yaml:"health_interval" envconfig:"HEALTH_INTERVAL"`

	FailOnMalformed bool `yaml:"fail_on_malformed" envconfig:"FAIL_ON_MALFORMED"`
	Strict          bool `yaml:"strict" envconfig:"STRICT"`
}

// Default returns a Config populated with the default values.
func Default() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		HealthPath:     DefaultHealthPath,
		CompletionPath: DefaultCompletionPath,
		Model:          DefaultModel,
		Prompt:         DefaultPrompt,
		MaxTokens:      DefaultMaxTokens,
		Temperature:    DefaultTemperature,
		Requests:       DefaultRequests,
		Delay:          DefaultDelay,
		RequestTimeout: DefaultRequestTimeout,
		HealthTimeout:  DefaultHealthTimeout,
		HealthAttempts: 1,
		HealthInterval: DefaultHealthInterval,
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment, in that order of increasing precedence. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// Fields without a matching variable keep their current value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	return cfg, nil
}

// decodeYAML overlays data onto cfg, rejecting unknown keys so typos surface.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ReadTimeout is the longest silence tolerated between two reads of a response body.
func (c *Config) ReadTimeout() time.Duration {
	if c.ChunkTimeout > 0 {
		return c.ChunkTimeout
	}
	return c.RequestTimeout
}

// Validate checks that the configuration describes a runnable reliability test.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(httputil.NormalizeBaseURL(c.BaseURL))
	switch {
	case c.BaseURL == "":
		errs = append(errs, errors.New("base_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base_url: unsupported scheme %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("base_url: missing host"))
	}

	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.Prompt == "" {
		errs = append(errs, errors.New("prompt is required"))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature))
	}
	if c.Requests < 1 {
		errs = append(errs, fmt.Errorf("requests must be at least 1, got %d", c.Requests))
	}
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %s", c.Delay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.ChunkTimeout < 0 {
		errs = append(errs, fmt.Errorf("chunk_timeout must not be negative, got %s", c.ChunkTimeout))
	}
	if c.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("max_duration must not be negative, got %s", c.MaxDuration))
	}
	if c.HealthTimeout <= 0 {
		errs = append(errs, fmt.Errorf("health_timeout must be positive, got %s", c.HealthTimeout))
	}
	if c.HealthAttempts < 1 {
		errs = append(errs, fmt.Errorf("health_attempts must be at least 1, got %d", c.HealthAttempts))
	}
	if c.HealthInterval < 0 {
		errs = append(errs, fmt.Errorf("health_interval must not be negative, got %s", c.HealthInterval))
	}
	for name, p := range map[string]string{"health_path": c.HealthPath, "completion_path": c.CompletionPath} {
		if p == "" || p[0] != '/' {
			errs = append(errs, fmt.Errorf("%s must start with '/', got %q", name, p))
		}
	}

	return errors.Join(errs...)
}
