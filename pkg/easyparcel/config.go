package easyparcel

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// DefaultCountry is used when neither the caller nor the provider names one.
const DefaultCountry = "my"

// Settings are the values a ConfigProvider can supply to New.
type Settings struct {
	APIKey  string
	Country string
	Sandbox bool
}

// ConfigProvider supplies credentials when they are not passed to New directly.
type ConfigProvider interface {
	Settings() (Settings, error)
}

// StaticProvider returns fixed settings.
type StaticProvider Settings

// Settings implements ConfigProvider.
func (p StaticProvider) Settings() (Settings, error) {
	return Settings(p), nil
}

// EnvProvider reads settings from EASYPARCEL_* environment variables.
type EnvProvider struct{}

type envSettings struct {
	APIKey  string `envconfig:"EASYPARCEL_API_KEY"`
	Country string `envconfig:"EASYPARCEL_COUNTRY" default:"my"`
	Env     string `envconfig:"EASYPARCEL_ENV" default:"production"`
}

// Settings implements ConfigProvider.
func (EnvProvider) Settings() (Settings, error) {
	var env envSettings
	if err := envconfig.Process("", &env); err != nil {
		return Settings{}, fmt.Errorf("loading easyparcel settings: %w", err)
	}
	return Settings{
		APIKey:  env.APIKey,
		Country: env.Country,
		Sandbox: strings.EqualFold(env.Env, "sandbox"),
	}, nil
}
