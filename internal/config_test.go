package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/tagshelf/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Query.Mode != ModeStatic {
		t.Errorf("mode = %q, want %q", cfg.Query.Mode, ModeStatic)
	}
}

func TestConfig_ProductionDefaultsToRemote(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.Env = EnvProduction
	cfg.Query.BaseURL = "https://example.com/data"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Query.Mode != ModeRemote {
		t.Errorf("mode = %q, want %q", cfg.Query.Mode, ModeRemote)
	}
}

func TestConfig_RemoteRequiresBaseURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Query.Mode = ModeRemote
	if err := cfg.Validate(); err == nil {
		t.Fatal("remote mode without base_url should fail")
	}
}

func TestConfig_SQLiteRequiresIndexPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Query.Mode = ModeSQLite
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "index_path") {
		t.Fatalf("err = %v, want index_path error", err)
	}
	cfg.Output.IndexPath = "catalog.db"
	if err := cfg.Validate(); err != nil {
		t.Errorf("with index path: %v", err)
	}
}

func TestConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"mode", func(c *Config) { c.Query.Mode = "magic" }},
		{"env", func(c *Config) { c.App.Env = "staging" }},
		{"log format", func(c *Config) { c.App.LogFormat = "xml" }},
		{"port", func(c *Config) { c.App.HTTP.Port = 70000 }},
		{"notes path", func(c *Config) { c.Notes.Path = "" }},
		{"data path", func(c *Config) { c.Output.DataPath = "" }},
		{"concurrency", func(c *Config) { c.Build.Concurrency = 5000 }},
		{"page size", func(c *Config) { c.Query.PageSize = 0 }},
	}
	for _, tt := range tests {
		cfg := NewDefaultConfig()
		tt.edit(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestConfig_LoadYAMLWithEnv(t *testing.T) {
	t.Setenv("TAGSHELF_NOTES", "/srv/notes")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  log_format: text
  http:
    port: 9090
notes:
  path: ${TAGSHELF_NOTES}
query:
  mode: live
  watch: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Notes.Path != "/srv/notes" {
		t.Errorf("notes path = %q", cfg.Notes.Path)
	}
	if cfg.App.LogLevel.String() != "DEBUG" || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Query.Mode != ModeLive || !cfg.Query.Watch || cfg.Query.PageSize != 20 {
		t.Errorf("query = %+v", cfg.Query)
	}
	if cfg.Build.Concurrency != 50 {
		t.Errorf("defaults lost: %+v", cfg.Build)
	}
}

func TestBuildConfig_Options(t *testing.T) {
	cfg := NewDefaultConfig()
	o := cfg.Build.Options("/assets")
	if o.Concurrency != 50 || o.PreviewLimit != 4 || o.MaxDepth != 32 || o.AssetsDir != "/assets" {
		t.Errorf("options = %+v", o)
	}
}
