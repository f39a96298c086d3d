package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "chatwire"
	DefaultPGSSLMode      = "disable"
	DefaultGatewayBaseURL = "http://localhost:3001"
	DefaultAvatarMaxAge   = "24h"
	DefaultAvatarSweep    = "0 */6 * * *"
	DefaultAvatarWorkers  = 2
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Channel  ChannelConfig  `toml:"channel"`
	Avatar   AvatarConfig   `toml:"avatar"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the pool connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// ChannelConfig describes the messaging channel this instance ingests:
// the gateway address and the channel's own WhatsApp number.
type ChannelConfig struct {
	ID             string `toml:"id" validate:"required"`
	PhoneNumber    string `toml:"phone_number" validate:"required"`
	GatewayBaseURL string `toml:"gateway_base_url" validate:"required,url"`
	GatewayUser    string `toml:"gateway_user"`
	GatewayPass    string `toml:"gateway_pass"`
}

type AvatarConfig struct {
	// MaxAge is how recent an attached avatar must be before a refresh
	// is considered, as a Go duration string.
	MaxAge string `toml:"max_age"`
	// SweepSchedule is the cron expression for the periodic stale-avatar
	// sweep. Empty disables the sweep.
	SweepSchedule string `toml:"sweep_schedule"`
	Workers       int    `toml:"workers"`
}

// Load reads the TOML config at path, applying defaults for absent fields.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	cfg := Config{
		Server:   ServerConfig{Addr: DefaultHTTPAddr},
		Postgres: PostgresConfig{Host: DefaultPGHost, Port: DefaultPGPort, User: DefaultPGUser, Database: DefaultPGDatabase, SSLMode: DefaultPGSSLMode},
		Channel:  ChannelConfig{GatewayBaseURL: DefaultGatewayBaseURL},
		Avatar:   AvatarConfig{MaxAge: DefaultAvatarMaxAge, SweepSchedule: DefaultAvatarSweep, Workers: DefaultAvatarWorkers},
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the channel settings; the rest of the config is usable
// with defaults alone.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c.Channel); err != nil {
		return fmt.Errorf("channel config: %w", err)
	}
	return nil
}
