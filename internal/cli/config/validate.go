package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Driver.Validate(); err != nil {
		return err
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("history_path is required")
	}
	if !slices.Contains(OutputFormats, NormalizeOutput(c.Output)) {
		return fmt.Errorf("unknown output format %q (want one of %s)", c.Output, strings.Join(OutputFormats, ", "))
	}
	return nil
}

// NormalizeOutput maps format aliases onto their canonical name.
func NormalizeOutput(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "markdown" {
		return "md"
	}
	return f
}
