package driver

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/leapdriver/pkg/core"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
)

// DefaultEngine is used when Config.Engine is empty.
const DefaultEngine = "duckdb"

// Config holds the options a connection is opened with.
type Config struct {
	// Engine names a registered engine (e.g., duckdb, sqlite).
	Engine string `koanf:"engine" yaml:"engine"`
	// Location is ":memory:" or a directory holding the database file.
	Location string `koanf:"location" yaml:"location"`
	// SessionTimeout is the idle timeout in milliseconds. Zero disables it.
	SessionTimeout int `koanf:"session_timeout" yaml:"session_timeout"`
	// QueryTimeout bounds each engine call, in milliseconds. Zero disables it.
	QueryTimeout int `koanf:"query_timeout" yaml:"query_timeout"`
	// MemoryLimit caps engine memory in megabytes. Zero means engine default.
	MemoryLimit int `koanf:"memory_limit" yaml:"memory_limit"`
	// Threads caps engine worker threads. Zero means engine default.
	Threads int `koanf:"nr_threads" yaml:"nr_threads"`
	// AutoCommit makes every statement commit on its own.
	AutoCommit bool `koanf:"autocommit" yaml:"autocommit"`
	// Params carries engine-specific settings.
	Params map[string]any `koanf:"params" yaml:"params,omitempty"`
}

// DefaultConfig returns an in-memory, autocommit configuration.
func DefaultConfig() Config {
	return Config{
		Engine:     DefaultEngine,
		Location:   engine.InMemory,
		AutoCommit: true,
	}
}

// knownKeys are the recognised top-level property names.
var knownKeys = map[string]bool{
	"engine":          true,
	"location":        true,
	"session_timeout": true,
	"query_timeout":   true,
	"memory_limit":    true,
	"nr_threads":      true,
	"autocommit":      true,
}

// ParseConfig builds a Config from string properties on top of
// DefaultConfig. Keys under "params." become engine params, split on dots.
func ParseConfig(props map[string]string) (Config, error) {
	var unknown []string
	flat := make(map[string]any, len(props))
	for key, val := range props {
		k := strings.ToLower(strings.TrimSpace(key))
		if !knownKeys[k] && !strings.HasPrefix(k, "params.") {
			unknown = append(unknown, key)
			continue
		}
		flat[k] = val
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Config{}, core.Errorf(core.KindInvalidConfig, "unrecognized properties: %s", strings.Join(unknown, ", "))
	}

	def := DefaultConfig()
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]any{
		"engine":     def.Engine,
		"location":   def.Location,
		"autocommit": def.AutoCommit,
	}, "."), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(flat, "."), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load properties: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, &core.Error{Kind: core.KindInvalidConfig, Msg: err.Error(), Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects negative limits.
func (c Config) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"session_timeout", c.SessionTimeout},
		{"query_timeout", c.QueryTimeout},
		{"memory_limit", c.MemoryLimit},
		{"nr_threads", c.Threads},
	}
	for _, chk := range checks {
		if chk.value < 0 {
			return core.Errorf(core.KindInvalidConfig, "%s must not be negative, got %d", chk.name, chk.value)
		}
	}
	return nil
}

// SessionOptions converts the configuration into engine session options.
func (c Config) SessionOptions() engine.SessionOptions {
	return engine.SessionOptions{
		SessionTimeout: time.Duration(c.SessionTimeout) * time.Millisecond,
		QueryTimeout:   time.Duration(c.QueryTimeout) * time.Millisecond,
		MemoryLimitMB:  c.MemoryLimit,
		Threads:        c.Threads,
		Params:         c.Params,
	}
}

func (c Config) engineName() string {
	if c.Engine == "" {
		return DefaultEngine
	}
	return c.Engine
}
