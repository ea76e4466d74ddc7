// Package sqlite provides the SQLite engine for LeapDriver.
//
// This file registers the SQLite engine with the engine registry.
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/leapdriver/pkg/engines/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/leapdriver/pkg/engine"
)

func init() {
	engine.Register("sqlite", func(logger *slog.Logger) engine.Engine { return New(logger) })
}
