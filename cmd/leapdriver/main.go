// Package main provides the leapdriver CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapdriver/internal/cli"

	// Engines register themselves with the driver.
	_ "github.com/leapstack-labs/leapdriver/pkg/engines/duckdb"
	_ "github.com/leapstack-labs/leapdriver/pkg/engines/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
