// Package duckdb provides the DuckDB engine for LeapDriver.
//
// This file registers the DuckDB engine with the engine registry.
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/leapdriver/pkg/engines/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/leapstack-labs/leapdriver/pkg/engine"
)

func init() {
	engine.Register("duckdb", func(logger *slog.Logger) engine.Engine { return New(logger) })
}
