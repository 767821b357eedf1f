package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("app:\n  port: 9000\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.App.Port != 9000 {
		t.Fatalf("Expected port 9000, got %d", cfg.App.Port)
	}
	if cfg.Model.N != 3 || cfg.Model.Alpha != 1.0 || cfg.Model.UnseenAlpha != 1.0 {
		t.Fatalf("Unexpected model defaults: %+v", cfg.Model)
	}
	if !cfg.Model.Normalise() {
		t.Fatal("Expected normalise_length to default to true")
	}
	if cfg.Model.Threads != runtime.NumCPU() {
		t.Fatalf("Expected %d threads, got %d", runtime.NumCPU(), cfg.Model.Threads)
	}
	if cfg.Persistence.ModelDir != "./ngram_models" {
		t.Fatalf("Expected default model dir, got '%s'", cfg.Persistence.ModelDir)
	}
	if cfg.Model.MaxOrder != 16 {
		t.Fatalf("Expected max_order 16, got %d", cfg.Model.MaxOrder)
	}
	if cfg.Mcp.Path != "/mcp" {
		t.Fatalf("Expected MCP path '/mcp', got '%s'", cfg.Mcp.Path)
	}
}

func TestParseConfig_ExplicitFalseNormalise(t *testing.T) {
	cfg, err := ParseConfig([]byte("model:\n  n: 2\n  normalise_length: false\n  threads: 4\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Model.Normalise() {
		t.Fatal("Expected normalise_length false to be kept")
	}
	if cfg.Model.N != 2 || cfg.Model.Threads != 4 {
		t.Fatalf("Unexpected model config: %+v", cfg.Model)
	}
}

func TestParseConfig_UnknownField(t *testing.T) {
	if _, err := ParseConfig([]byte("model:\n  order: 2\n")); err == nil {
		t.Fatal("Expected error for unknown field, got nil")
	}
}

func TestParseConfig_InvalidThreads(t *testing.T) {
	if _, err := ParseConfig([]byte("model:\n  threads: -1\n")); err == nil {
		t.Fatal("Expected error for negative threads, got nil")
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	content := "mcp:\n  enabled: true\n  path: /tools\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !cfg.Mcp.Enabled {
		t.Fatal("Expected MCP to be enabled")
	}
	if cfg.Mcp.Path != "/tools" {
		t.Fatalf("Expected MCP path '/tools', got '%s'", cfg.Mcp.Path)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
}

func TestParseConfig_InvalidModelDefaults(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative n", "model:\n  n: -2\n"},
		{"n above max order", "model:\n  n: 5\n  max_order: 4\n"},
		{"negative alpha", "model:\n  alpha: -1\n"},
		{"negative unseen alpha", "model:\n  unseen_alpha: -0.5\n"},
		{"infinite alpha", "model:\n  alpha: .inf\n"},
		{"negative max order", "model:\n  max_order: -1\n"},
		{"relative mcp path", "mcp:\n  enabled: true\n  path: tools\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.yaml)); err == nil {
				t.Errorf("Expected error for %q, got nil", tt.yaml)
			}
		})
	}
}

func TestConfig_ModelDir(t *testing.T) {
	cfg := Default()
	if cfg.ModelDir() != "./ngram_models" {
		t.Fatalf("Expected unresolved model dir without workdir, got '%s'", cfg.ModelDir())
	}

	cfg.App.WorkDir = "/srv/ngm"
	if want := filepath.Join("/srv/ngm", "ngram_models"); cfg.ModelDir() != want {
		t.Fatalf("Expected '%s', got '%s'", want, cfg.ModelDir())
	}

	cfg.Persistence.ModelDir = "/var/lib/ngm"
	if cfg.ModelDir() != "/var/lib/ngm" {
		t.Fatalf("Expected absolute model dir to be kept, got '%s'", cfg.ModelDir())
	}
}
