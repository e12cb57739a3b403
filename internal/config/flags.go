package config

import "github.com/spf13/pflag"

// Overrides holds command-line settings that take priority over the file.
type Overrides struct {
	ConfigPath string
	Debug      bool
	LogFile    string
	Host       string
	Port       int
	Deform     bool
	Text       bool
}

// Register binds the override flags to fs.
func (o *Overrides) Register(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", "", "Path to config file (.yaml or .toml)")
	fs.BoolVar(&o.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&o.LogFile, "log-file", "", "Write logs to this file as well")
	fs.StringVar(&o.Host, "host", "", "Authoring tool host")
	fs.IntVar(&o.Port, "port", 0, "Authoring tool port")
	fs.BoolVar(&o.Deform, "deform", false, "Build deform-bone rigs")
	fs.BoolVar(&o.Text, "text", false, "Use the base64 text transport")
}

// apply applies CLI flag overrides to the config.
func (o *Overrides) apply(cfg *Config) {
	if o == nil {
		return
	}
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}
	if o.Host != "" {
		cfg.Bridge.Host = o.Host
	}
	if o.Port > 0 {
		cfg.Bridge.Port = o.Port
	}
	if o.Deform {
		cfg.Rig.DeformBones = true
	}
	if o.Text {
		cfg.Transport.TextMode = true
	}
}
