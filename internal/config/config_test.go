package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meshview.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != ":8765" {
		t.Errorf("expected :8765, got %s", cfg.ListenAddr)
	}
	if cfg.Database.Path != "./meshview.db" {
		t.Errorf("expected ./meshview.db, got %s", cfg.Database.Path)
	}
	if cfg.Collection.Timeout.Duration() != 60*time.Second {
		t.Errorf("expected 60s timeout, got %s", cfg.Collection.Timeout.Duration())
	}
	if cfg.Collection.MaxConcurrent != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Collection.MaxConcurrent)
	}
	if cfg.Collection.SuccessFloor != 0.5 {
		t.Errorf("expected floor 0.5, got %g", cfg.Collection.SuccessFloor)
	}
	if cfg.AutoRefresh.Duration() != 0 {
		t.Errorf("expected auto refresh disabled by default, got %s", cfg.AutoRefresh.Duration())
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
version: 1
listen_addr: ":9000"
database:
  path: /var/lib/meshview/meshview.db
controller:
  url: http://hub.local:8123
  token: file-token
collection:
  timeout: 90s
  max_concurrent: 4
  success_floor: 0.75
  scan_wait: 30s
  keep_alive: 10s
auto_refresh: 5m
`)
		cfg, gotPath, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if gotPath != path {
			t.Errorf("expected path %s, got %s", path, gotPath)
		}
		if cfg.ListenAddr != ":9000" {
			t.Errorf("expected :9000, got %s", cfg.ListenAddr)
		}
		if cfg.Controller.URL != "http://hub.local:8123" {
			t.Errorf("unexpected controller URL %s", cfg.Controller.URL)
		}
		if cfg.Collection.Timeout.Duration() != 90*time.Second {
			t.Errorf("expected 90s, got %s", cfg.Collection.Timeout.Duration())
		}
		if cfg.Collection.ScanWait.Duration() != 30*time.Second {
			t.Errorf("expected 30s scan wait, got %s", cfg.Collection.ScanWait.Duration())
		}
		if cfg.AutoRefresh.Duration() != 5*time.Minute {
			t.Errorf("expected 5m auto refresh, got %s", cfg.AutoRefresh.Duration())
		}
	})

	t.Run("partial config gets defaults", func(t *testing.T) {
		path := writeConfig(t, `
controller:
  url: http://hub.local:8123
`)
		cfg, _, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.ListenAddr != ":8765" {
			t.Errorf("expected default listen addr, got %s", cfg.ListenAddr)
		}
		if cfg.Collection.MaxConcurrent != 8 {
			t.Errorf("expected default workers, got %d", cfg.Collection.MaxConcurrent)
		}
	})

	t.Run("env token overrides the file", func(t *testing.T) {
		path := writeConfig(t, `
controller:
  url: http://hub.local:8123
  token: file-token
`)
		t.Setenv(EnvToken, "env-token")

		cfg, _, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Controller.Token != "env-token" {
			t.Errorf("expected env token to win, got %s", cfg.Controller.Token)
		}
	})

	t.Run("bad duration fails", func(t *testing.T) {
		path := writeConfig(t, `
collection:
  timeout: ninety seconds
`)
		if _, _, err := LoadFromPath(path); err == nil {
			t.Error("expected parse error for bad duration")
		}
	})

	t.Run("out of range floor fails validation", func(t *testing.T) {
		path := writeConfig(t, `
collection:
  success_floor: 1.5
`)
		if _, _, err := LoadFromPath(path); err == nil {
			t.Error("expected validation error for floor > 1")
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		if _, _, err := LoadFromPath("/nonexistent/meshview.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "meshview.yaml")

	cfg := DefaultConfig()
	cfg.Controller.URL = "http://hub.local:8123"
	cfg.AutoRefresh = Duration(2 * time.Minute)

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Controller.URL != cfg.Controller.URL {
		t.Errorf("expected %s, got %s", cfg.Controller.URL, loaded.Controller.URL)
	}
	if loaded.AutoRefresh.Duration() != 2*time.Minute {
		t.Errorf("expected 2m, got %s", loaded.AutoRefresh.Duration())
	}
}
