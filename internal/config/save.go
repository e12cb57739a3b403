package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Save writes the config to config.yaml in the user's config directory.
func (c *Config) Save() error {
	return c.SaveTo(filepath.Join(ConfigDir(), "config.yaml"))
}

// SaveTo writes the config to path. A .toml extension selects TOML, anything
// else YAML.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(c); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
