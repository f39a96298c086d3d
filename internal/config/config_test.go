package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultPGDatabase, cfg.Postgres.Database)
	assert.Equal(t, DefaultGatewayBaseURL, cfg.Channel.GatewayBaseURL)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[server]
addr = ":9090"

[channel]
id = "main"
phone_number = "+5559999"
gateway_base_url = "http://gateway:3001"
gateway_user = "admin"
gateway_pass = "secret"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "main", cfg.Channel.ID)
	assert.Equal(t, "+5559999", cfg.Channel.PhoneNumber)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsIncompleteChannel(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	// Defaults alone have no channel id or phone number.
	assert.Error(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	dsn := PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable",
	}.DSN()
	assert.Equal(t, "postgres://u:p@db:5432/d?sslmode=disable", dsn)
}
