// Package config handles rigbridge configuration loading and management.
package config

import "time"

// Config holds all rigbridge settings.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Rig       RigConfig       `yaml:"rig" toml:"rig"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Bridge    BridgeConfig    `yaml:"bridge" toml:"bridge"`
	Export    ExportConfig    `yaml:"export" toml:"export"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// RigConfig holds rig construction settings.
type RigConfig struct {
	MaxDepth    int  `yaml:"max_depth" toml:"max_depth"`
	YieldEvery  int  `yaml:"yield_every" toml:"yield_every"` // 0 disables yielding
	DeformBones bool `yaml:"deform_bones" toml:"deform_bones"`
}

// TransportConfig holds payload encoding settings.
type TransportConfig struct {
	TextMode         bool `yaml:"text_mode" toml:"text_mode"`                 // emit base64 text instead of binary
	CompressionLevel int  `yaml:"compression_level" toml:"compression_level"` // zlib level, 0 = default
}

// BridgeConfig holds the authoring tool connection settings.
type BridgeConfig struct {
	Host    string        `yaml:"host" toml:"host"`
	Port    int           `yaml:"port" toml:"port"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// ExportConfig holds rig export settings.
type ExportConfig struct {
	Version int `yaml:"version" toml:"version"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Rig: RigConfig{
			MaxDepth:    1024,
			YieldEvery:  1000,
			DeformBones: false,
		},
		Transport: TransportConfig{
			TextMode:         false,
			CompressionLevel: 0,
		},
		Bridge: BridgeConfig{
			Host:    "127.0.0.1",
			Port:    31337,
			Timeout: 10 * time.Second,
		},
		Export: ExportConfig{
			Version: 3,
		},
	}
}
