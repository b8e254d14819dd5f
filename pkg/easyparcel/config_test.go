package easyparcel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/easyparcel/pkg/easyparcel"
)

func TestEnvProvider(t *testing.T) {
	t.Setenv("EASYPARCEL_API_KEY", "env-key")
	t.Setenv("EASYPARCEL_COUNTRY", "SG")
	t.Setenv("EASYPARCEL_ENV", "Sandbox")

	s, err := easyparcel.EnvProvider{}.Settings()

	require.NoError(t, err)
	assert.Equal(t, easyparcel.Settings{APIKey: "env-key", Country: "SG", Sandbox: true}, s)
}

func TestEnvProvider_Production(t *testing.T) {
	t.Setenv("EASYPARCEL_API_KEY", "env-key")
	t.Setenv("EASYPARCEL_ENV", "production")

	s, err := easyparcel.EnvProvider{}.Settings()

	require.NoError(t, err)
	assert.False(t, s.Sandbox)
}

func TestEnvProvider_UsedByNew(t *testing.T) {
	t.Setenv("EASYPARCEL_API_KEY", "env-key")
	t.Setenv("EASYPARCEL_COUNTRY", "SG")
	t.Setenv("EASYPARCEL_ENV", "sandbox")

	client, err := easyparcel.New(easyparcel.Config{Provider: easyparcel.EnvProvider{}}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "sg", client.Country())
	assert.Equal(t, "https://demo.connect.easyparcel.sg", client.BaseURL())
}

func TestStaticProvider(t *testing.T) {
	p := easyparcel.StaticProvider{APIKey: "k", Country: "my"}

	s, err := p.Settings()

	require.NoError(t, err)
	assert.Equal(t, easyparcel.Settings{APIKey: "k", Country: "my"}, s)
}
