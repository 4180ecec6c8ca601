package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all resonance configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Feed     FeedConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

type DatabaseConfig struct {
	Path string
}

type FeedConfig struct {
	// DefaultLimit caps feed responses when the request does not.
	DefaultLimit int
	// CuriosityRatio is the default exploration share per feed.
	CuriosityRatio float64
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37310,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Feed: FeedConfig{
			DefaultLimit:   40,
			CuriosityRatio: 0.18,
		},
	}
}

// FromEnv returns Default overlaid with RESONANCE_* environment variables:
// RESONANCE_BIND, RESONANCE_PORT, RESONANCE_DB.
func FromEnv() Config {
	cfg := Default()
	if v := os.Getenv("RESONANCE_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("RESONANCE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("RESONANCE_DB"); v != "" {
		cfg.Database.Path = v
	}
	return cfg
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
