package config

import (
	"time"
)

const second = Duration(time.Second)

// Config is the root configuration structure
type Config struct {
	Version     int              `yaml:"version"`
	ListenAddr  string           `yaml:"listen_addr"`
	Database    DatabaseConfig   `yaml:"database"`
	Controller  ControllerConfig `yaml:"controller"`
	Collection  CollectionConfig `yaml:"collection"`
	AutoRefresh Duration         `yaml:"auto_refresh,omitempty"` // 0 disables periodic refresh
	Debug       bool             `yaml:"debug,omitempty"`
}

// DatabaseConfig describes the SQLite position and snapshot store
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ControllerConfig describes the upstream mesh controller API
type ControllerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token,omitempty"`
}

// CollectionConfig tunes one collection cycle
type CollectionConfig struct {
	Timeout       Duration `yaml:"timeout"`
	MaxConcurrent int      `yaml:"max_concurrent"`
	SuccessFloor  float64  `yaml:"success_floor"`
	ScanWait      Duration `yaml:"scan_wait,omitempty"` // 0 disables the legacy scan trigger
	KeepAlive     Duration `yaml:"keep_alive"`
}

// Duration wraps time.Duration for human-readable YAML ("30s", "5m")
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
