package duckdb

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/leapdriver/pkg/engine"
)

// Params holds DuckDB-specific session settings.
// Parsed from engine.SessionOptions.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "json", "parquet")
	Extensions []string `mapstructure:"extensions"`

	// Settings to apply at session level (e.g., default_order, enable_progress_bar)
	Settings map[string]string `mapstructure:"settings"`
}

// parseParams decodes the engine params map. Scalar settings are accepted
// in any type and rendered as strings.
func parseParams(params map[string]any) (*Params, error) {
	p := &Params{}
	if len(params) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}

// buildDSN renders the database path plus the negotiated session limits as
// DuckDB config parameters.
func buildDSN(path string, opts engine.SessionOptions) string {
	if path == engine.InMemory {
		path = ""
	}
	q := url.Values{}
	if opts.MemoryLimitMB > 0 {
		q.Set("memory_limit", fmt.Sprintf("%dMB", opts.MemoryLimitMB))
	}
	if opts.Threads > 0 {
		q.Set("threads", strconv.Itoa(opts.Threads))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// sessionStatements returns the statements applying p, in a stable order.
func sessionStatements(p *Params) []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts,
			fmt.Sprintf("INSTALL %s", engine.QuoteIdent(ext)),
			fmt.Sprintf("LOAD %s", engine.QuoteIdent(ext)))
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, engine.QuoteString(p.Settings[k])))
	}
	return stmts
}
