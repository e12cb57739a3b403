package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test rig defaults
	if cfg.Rig.MaxDepth != 1024 {
		t.Errorf("expected max depth 1024, got %d", cfg.Rig.MaxDepth)
	}
	if cfg.Rig.YieldEvery != 1000 {
		t.Errorf("expected yield every 1000, got %d", cfg.Rig.YieldEvery)
	}
	if cfg.Rig.DeformBones {
		t.Error("expected deform_bones to be false by default")
	}

	// Test transport defaults
	if cfg.Transport.TextMode {
		t.Error("expected text_mode to be false by default")
	}

	// Test bridge defaults
	if cfg.Bridge.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Bridge.Host)
	}
	if cfg.Bridge.Port != 31337 {
		t.Errorf("expected port 31337, got %d", cfg.Bridge.Port)
	}
	if cfg.Bridge.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", cfg.Bridge.Timeout)
	}

	// Test export defaults
	if cfg.Export.Version != 3 {
		t.Errorf("expected export version 3, got %d", cfg.Export.Version)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
rig:
  max_depth: 64
  yield_every: 0
  deform_bones: true

transport:
  text_mode: true
  compression_level: 9

bridge:
  host: "studio.local"
  port: 8080
  timeout: 5s

logging:
  level: "debug"
  log_file: "rig.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Rig.MaxDepth != 64 {
		t.Errorf("expected max depth 64, got %d", cfg.Rig.MaxDepth)
	}
	if cfg.Rig.YieldEvery != 0 {
		t.Errorf("expected yield every 0, got %d", cfg.Rig.YieldEvery)
	}
	if !cfg.Rig.DeformBones {
		t.Error("expected deform_bones to be true")
	}
	if !cfg.Transport.TextMode {
		t.Error("expected text_mode to be true")
	}
	if cfg.Transport.CompressionLevel != 9 {
		t.Errorf("expected compression level 9, got %d", cfg.Transport.CompressionLevel)
	}
	if cfg.Bridge.Host != "studio.local" {
		t.Errorf("expected host studio.local, got %s", cfg.Bridge.Host)
	}
	if cfg.Bridge.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Bridge.Timeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "rig.log" {
		t.Errorf("expected log file 'rig.log', got %s", cfg.Logging.LogFile)
	}

	// Untouched sections keep their defaults
	if cfg.Export.Version != 3 {
		t.Errorf("expected export version 3, got %d", cfg.Export.Version)
	}
}

func TestLoadFromTOMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
[rig]
max_depth = 128
deform_bones = true

[bridge]
port = 9000
timeout = "2s"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Rig.MaxDepth != 128 {
		t.Errorf("expected max depth 128, got %d", cfg.Rig.MaxDepth)
	}
	if !cfg.Rig.DeformBones {
		t.Error("expected deform_bones to be true")
	}
	if cfg.Bridge.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Bridge.Port)
	}
	if cfg.Bridge.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", cfg.Bridge.Timeout)
	}
	if cfg.Bridge.Host != "127.0.0.1" {
		t.Errorf("expected default host, got %s", cfg.Bridge.Host)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	// Create temporary config files with invalid syntax
	tmpDir := t.TempDir()

	files := map[string]string{
		"invalid.yaml": "rig:\n  max_depth: not a number\n  invalid syntax here\n",
		"invalid.toml": "[rig\nmax_depth = = 3\n",
	}

	for name, content := range files {
		configPath := filepath.Join(tmpDir, name)
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		// Try to load - should error
		cfg := Default()
		if err := loadFromFile(cfg, configPath); err == nil {
			t.Errorf("expected error loading %s, got nil", name)
		}
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	// Keep the user's real config out of the search
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	// Save current directory
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	// Create temp directory and change to it
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// Create rigbridge.toml in current directory
	configPath := filepath.Join(tmpDir, "rigbridge.toml")
	if err := os.WriteFile(configPath, []byte("[rig]\nmax_depth = 8\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Should find it now
	path = findConfigFile()
	if path != "./rigbridge.toml" {
		t.Errorf("expected to find rigbridge.toml in current directory, got %q", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug flag",
			args: []string{"--debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "host and port flags",
			args: []string{"--host", "10.0.0.2", "--port", "7000"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bridge.Host != "10.0.0.2" {
					t.Errorf("expected host 10.0.0.2, got %s", cfg.Bridge.Host)
				}
				if cfg.Bridge.Port != 7000 {
					t.Errorf("expected port 7000, got %d", cfg.Bridge.Port)
				}
			},
		},
		{
			name: "deform and text flags",
			args: []string{"--deform", "--text"},
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Rig.DeformBones {
					t.Error("expected deform_bones with deform flag")
				}
				if !cfg.Transport.TextMode {
					t.Error("expected text_mode with text flag")
				}
			},
		},
		{
			name: "log file flag",
			args: []string{"--log-file", "out.log"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.LogFile != "out.log" {
					t.Errorf("expected log file out.log, got %s", cfg.Logging.LogFile)
				}
			},
		},
		{
			name: "no flags",
			args: nil,
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bridge.Port != 31337 {
					t.Errorf("expected default port, got %d", cfg.Bridge.Port)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Overrides
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			o.Register(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("parsing flags: %v", err)
			}

			// Apply flags to default config
			cfg := Default()
			o.apply(cfg)

			// Verify
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
bridge:
  host: "file.host"
  port: 1234
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	o := &Overrides{ConfigPath: configPath, Port: 4321}

	// Load config
	cfg, err := Load(o)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Port should be from flag (4321), not file (1234)
	if cfg.Bridge.Port != 4321 {
		t.Errorf("expected port 4321 from flag, got %d", cfg.Bridge.Port)
	}

	// Host should be from file since no flag override
	if cfg.Bridge.Host != "file.host" {
		t.Errorf("expected host file.host from file, got %s", cfg.Bridge.Host)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rigbridge.yaml")

	cfg := Default()
	cfg.Rig.MaxDepth = 32
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Rig.MaxDepth != 32 {
		t.Errorf("expected max depth 32 after reload, got %d", loaded.Rig.MaxDepth)
	}
	if loaded.Bridge.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s after reload, got %v", loaded.Bridge.Timeout)
	}
}

func TestSaveToTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rigbridge.toml")

	cfg := Default()
	cfg.Bridge.Port = 4242
	cfg.Transport.TextMode = true
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Bridge.Port != 4242 {
		t.Errorf("expected port 4242 after reload, got %d", loaded.Bridge.Port)
	}
	if !loaded.Transport.TextMode {
		t.Error("expected text mode after reload")
	}
}
