// Package config provides configuration management for the leapdriver CLI.
//
// The connection settings are the driver's own Config, nested under the
// "driver" key; the remaining keys control the shell itself.
package config

import (
	"github.com/leapstack-labs/leapdriver/pkg/driver"
)

// Default configuration values.
const (
	DefaultHistoryFile = ".leapdriver/history.db"
	DefaultOutput      = "table"
	EnvPrefix          = "LEAPDRIVER_"
)

// Output formats accepted by --output.
var OutputFormats = []string{"table", "json", "csv", "md"}

// Config holds all CLI configuration options.
type Config struct {
	Driver      driver.Config `koanf:"driver" yaml:"driver"`
	HistoryPath string        `koanf:"history_path" yaml:"history_path"`
	Output      string        `koanf:"output" yaml:"output"`
	Verbose     bool          `koanf:"verbose" yaml:"verbose"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-" yaml:"-"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Driver:      driver.DefaultConfig(),
		HistoryPath: DefaultHistoryFile,
		Output:      DefaultOutput,
	}
}
