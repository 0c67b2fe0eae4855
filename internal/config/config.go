package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/craftdeck/craftdeck/internal/history/factory"
	"github.com/craftdeck/craftdeck/internal/logger"
	"github.com/craftdeck/craftdeck/internal/supervisor"
)

// Config is the top-level TOML structure for the craftdeck daemon.
//
// Example:
//
//	listen = ":8080"
//	base_path = ""
//
//	[server]
//	jar = "server.jar"
//	workdir = "/srv/minecraft"
//
//	[log]
//	dir = "/var/log/craftdeck"
//
//	[history]
//	type = "sqlite"
//	dsn = "/var/lib/craftdeck/events.db"
//
//	[metrics]
//	enabled = true
type Config struct {
	Listen   string             `toml:"listen" mapstructure:"listen"`
	BasePath string             `toml:"base_path" mapstructure:"base_path"`
	Server   supervisor.Config  `toml:"server" mapstructure:"server"`
	Log      *logger.FileConfig `toml:"log" mapstructure:"log"`
	History  factory.Config     `toml:"history" mapstructure:"history"`
	Metrics  MetricsConfig      `toml:"metrics" mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

// Default returns the configuration used when keys are absent from the file.
func Default() Config {
	return Config{
		Listen: ":8080",
		Server: supervisor.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads a TOML config file. Keys absent from the file keep their
// defaults; mapstructure only overwrites what the file provides.
func Load(path string) (Config, error) {
	cfg := Default()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	return cfg, nil
}
