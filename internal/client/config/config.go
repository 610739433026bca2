// Package config loads client settings from
// ~/.config/speakly/config.yaml and SPEAKLY_* environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	ServerURL       string        `mapstructure:"server_url"`
	Profile         string        `mapstructure:"profile"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RecorderCommand []string      `mapstructure:"recorder_command"`
	PlayerCommand   []string      `mapstructure:"player_command"`
	MusicURL        string        `mapstructure:"music_url"`
	ReturnURL       string        `mapstructure:"return_url"`
	Events          bool          `mapstructure:"events"`
	DebugLog        string        `mapstructure:"debug_log"`
	Debug           bool          `mapstructure:"debug"`
}

func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "speakly")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("profile", "default")
	v.SetDefault("poll_interval", 3*time.Second)
	v.SetDefault("recorder_command", []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-t", "wav", "-"})
	v.SetDefault("player_command", []string{})
	v.SetDefault("music_url", "https://itunes.apple.com/search")
	v.SetDefault("return_url", "")
	v.SetDefault("events", true)
	v.SetDefault("debug_log", "debug.log")
	v.SetDefault("debug", false)
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"server":  "server_url",
	"profile": "profile",
	"debug":   "debug",
}

// Load reads config.yaml from dir when it exists. Environment variables win
// over the file and flags that were set win over both. flags may be nil.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("SPEAKLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}
	return &cfg, nil
}
