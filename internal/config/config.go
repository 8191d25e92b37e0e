// Package config loads and validates the agent configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/schnooty/agent/internal/models"
)

// Defaults applied when the config file omits the corresponding key.
const (
	DefaultHeartbeat     = 30 * time.Second
	DefaultFetchInterval = 60 * time.Second
	DefaultLogLevel      = "info"
)

var validate = validator.New()

// Config is the agent configuration, decoded from a YAML file. Monitors and
// alerts listed here are merged with the ones fetched from the control
// plane when a base URL is configured.
type Config struct {
	BaseURL        string           `yaml:"base_url" validate:"omitempty,url"`
	APIKey         string           `yaml:"api_key"` // "id:secret" basic-auth pair
	Monitors       []models.Monitor `yaml:"monitors" validate:"omitempty,dive"`
	Alerts         []models.Alert   `yaml:"alerts" validate:"omitempty,dive"`
	SessionName    string           `yaml:"session_name"`
	CreateSession  bool             `yaml:"create_session"`
	UploadStatuses bool             `yaml:"upload_statuses"`
	Heartbeat      string           `yaml:"heartbeat"`      // period syntax, e.g. "30s"
	FetchInterval  string           `yaml:"fetch_interval"` // period syntax, e.g. "60s"
	LogLevel       string           `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns a configuration with every optional knob at its default.
// Sessions and status uploads are on by default; both still require a base
// URL to do anything.
func Default() *Config {
	return &Config{
		CreateSession:  true,
		UploadStatuses: true,
		Heartbeat:      "30s",
		FetchInterval:  "60s",
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads the configuration file and applies environment variable
// overrides. Precedence: file, then environment; CLI flag overrides are
// applied by the caller on top.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate ensures all configuration values are well formed.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			messages := make([]string, 0, len(fieldErrors))
			for _, fe := range fieldErrors {
				messages = append(messages, formatFieldError(fe))
			}
			return errors.New(strings.Join(messages, "; "))
		}
		return err
	}

	if c.APIKey != "" && !strings.Contains(c.APIKey, ":") {
		return errors.New(`api_key must have the form "id:secret"`)
	}

	return nil
}

// applyEnvOverrides checks for environment variables with SCHNOOTY_ prefix
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCHNOOTY_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SCHNOOTY_API_KEY"); v != "" {
		cfg.APIKey = v
	}
}

// GetHeartbeat returns the session heartbeat interval as a duration.
func (c *Config) GetHeartbeat() time.Duration {
	if ms := models.ParsePeriod(c.Heartbeat); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return DefaultHeartbeat
}

// GetFetchInterval returns the remote config fetch interval as a duration.
func (c *Config) GetFetchInterval() time.Duration {
	if ms := models.ParsePeriod(c.FetchInterval); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return DefaultFetchInterval
}

// HasBaseURL reports whether a control-plane API is configured.
func (c *Config) HasBaseURL() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Namespace())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag())
	}
}
