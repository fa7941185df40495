package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reflexd.hujson")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("listen addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.SocketPath != "/ws/reflex" {
		t.Fatalf("socket path = %q, want /ws/reflex", cfg.Server.SocketPath)
	}
	if cfg.Store.InvokedTTLSeconds != 86400 {
		t.Fatalf("invoked ttl = %d, want 86400", cfg.Store.InvokedTTLSeconds)
	}
}

func TestLoadHuJSONWithComments(t *testing.T) {
	path := writeConfig(t, `{
		// socket endpoint
		"server": {
			"host": "0.0.0.0",
			"port": 9090,
			"auth_token": "secret",
		},
		"store": {
			"redis_addr": "localhost:6379",
		},
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:9090" {
		t.Fatalf("listen addr = %q, want 0.0.0.0:9090", cfg.Server.ListenAddr)
	}
	if cfg.Server.AuthToken != "secret" {
		t.Fatalf("auth token = %q, want secret", cfg.Server.AuthToken)
	}
	if cfg.Store.RedisAddr != "localhost:6379" {
		t.Fatalf("redis addr = %q, want localhost:6379", cfg.Store.RedisAddr)
	}
	if cfg.Store.InvokedTTLSeconds != 86400 {
		t.Fatalf("invoked ttl defaulted to %d, want 86400", cfg.Store.InvokedTTLSeconds)
	}
}

func TestLoadListenAddrWins(t *testing.T) {
	path := writeConfig(t, `{"server": {"listen_addr": ":7000", "host": "ignored", "port": 1}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":7000" {
		t.Fatalf("listen addr = %q, want :7000", cfg.Server.ListenAddr)
	}
}

func TestLoadMalformedConfig(t *testing.T) {
	path := writeConfig(t, `{"server": `)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.hujson")); err == nil {
		t.Fatal("expected read error")
	}
}
