package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/easyparcel/pkg/easyparcel"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the CLI and bridge server.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// EasyParcel
	APIKey  string        `envconfig:"EASYPARCEL_API_KEY"`
	Country string        `envconfig:"EASYPARCEL_COUNTRY" default:"my"`
	Env     string        `envconfig:"EASYPARCEL_ENV" default:"production"`
	BaseURL string        `envconfig:"EASYPARCEL_BASE_URL"`
	Timeout time.Duration `envconfig:"EASYPARCEL_TIMEOUT" default:"30s"`
	UseMock bool          `envconfig:"EASYPARCEL_USE_MOCK" default:"false"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"easyparcel-bridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Sandbox reports whether EASYPARCEL_ENV selects the sandbox.
func (c *Config) Sandbox() bool {
	return strings.EqualFold(c.Env, "sandbox")
}

// Settings implements easyparcel.ConfigProvider.
func (c *Config) Settings() (easyparcel.Settings, error) {
	return easyparcel.Settings{
		APIKey:  c.APIKey,
		Country: c.Country,
		Sandbox: c.Sandbox(),
	}, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("easyparcel.country", strings.ToLower(c.Country)),
		attribute.Bool("easyparcel.sandbox", c.Sandbox()),
		attribute.Bool("easyparcel.mock", c.UseMock),
	}
}
