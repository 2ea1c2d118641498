package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "http:\n  addr: \"127.0.0.1:9000\"\n"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Artifacts.Dir != "models" {
		t.Errorf("Artifacts.Dir = %q, want models", cfg.Artifacts.Dir)
	}
	if cfg.Lookup.MaxAttempts != 3 || cfg.Lookup.BaseDelay() != time.Second || cfg.Lookup.Multiplier != 2 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Lookup)
	}
	if cfg.Lookup.Cache != CacheFile {
		t.Errorf("Lookup.Cache = %q, want %q", cfg.Lookup.Cache, CacheFile)
	}
	if cfg.Spotify.RequestPause() != 500*time.Millisecond {
		t.Errorf("RequestPause() = %v", cfg.Spotify.RequestPause())
	}
	if cfg.SpotifyEnabled() {
		t.Error("Spotify should be disabled without credentials")
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SPOTIFY_ID", "id-123")
	t.Setenv("TEST_SPOTIFY_SECRET", "secret-456")

	cfg, err := LoadFile(writeConfig(t, `
spotify:
  client_id: "${TEST_SPOTIFY_ID}"
  client_secret: "${TEST_SPOTIFY_SECRET}"
artifacts:
  dir: "${TEST_UNSET_DIR:-/tmp/models}"
`))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if !cfg.SpotifyEnabled() || cfg.Spotify.ClientID != "id-123" {
		t.Errorf("Spotify = %+v", cfg.Spotify)
	}
	if cfg.Artifacts.Dir != "/tmp/models" {
		t.Errorf("Artifacts.Dir = %q, want /tmp/models", cfg.Artifacts.Dir)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown cache", func(c *Config) { c.Lookup.Cache = "redis" }, "lookup.cache"},
		{"postgres without url", func(c *Config) { c.Lookup.Cache = CachePostgres }, "database.url"},
		{"postgres with url", func(c *Config) {
			c.Lookup.Cache = CachePostgres
			c.Database.URL = "postgres://localhost/test"
		}, ""},
		{"half credentials", func(c *Config) { c.Spotify.ClientID = "id" }, "set together"},
		{"count too large", func(c *Config) { c.Lookup.DefaultCount = 50 }, "default_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}

func TestLoad_RepoConfigs(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/recommender")
	t.Setenv("SPOTIFY_ID", "")
	t.Setenv("SPOTIFY_SECRET", "")
	t.Setenv("LOOKUP_CACHE", "")
	for _, env := range []string{"local", "prod"} {
		t.Run(env, func(t *testing.T) {
			if _, err := Load(env); err != nil {
				t.Errorf("Load(%q) error = %v", env, err)
			}
		})
	}
}
