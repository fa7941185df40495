package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

type Config struct {
	Server ServerConfig `json:"server"`
	Store  StoreConfig  `json:"store"`
}

type ServerConfig struct {
	ListenAddr string `json:"listen_addr"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	SocketPath string `json:"socket_path"`
	AuthToken  string `json:"auth_token"`
}

type StoreConfig struct {
	RedisAddr         string `json:"redis_addr"`
	InvokedTTLSeconds int    `json:"invoked_ttl_seconds"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			SocketPath: "/ws/reflex",
			AuthToken:  os.Getenv("REFLEX_AUTH_TOKEN"),
		},
		Store: StoreConfig{
			RedisAddr:         os.Getenv("REDIS_ADDR"),
			InvokedTTLSeconds: 86400,
		},
	}
}

// Load reads a HuJSON config file (comments and trailing commas allowed)
// and applies defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config failed: %w", err)
	}

	standard, err := hujson.Standardize(content)
	if err != nil {
		return Config{}, fmt.Errorf("parse config failed: %w", err)
	}
	if err := json.Unmarshal(standard, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config failed: %w", err)
	}

	if cfg.Server.SocketPath == "" {
		cfg.Server.SocketPath = "/ws/reflex"
	}
	if cfg.Server.ListenAddr == "" {
		if cfg.Server.Host != "" && cfg.Server.Port > 0 {
			cfg.Server.ListenAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		} else {
			cfg.Server.ListenAddr = ":8080"
		}
	}
	if cfg.Store.InvokedTTLSeconds <= 0 {
		cfg.Store.InvokedTTLSeconds = 86400
	}

	return cfg, nil
}
