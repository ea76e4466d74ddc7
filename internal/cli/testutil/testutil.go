// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapdriver/internal/cli/config"
	rootutil "github.com/leapstack-labs/leapdriver/internal/testutil"
	"github.com/spf13/cobra"
)

// Output holds what a command wrote.
type Output struct {
	Out    string
	ErrOut string
}

// SQLiteConfig returns a config that opens an in-memory SQLite engine and
// journals into a fresh directory under t.TempDir().
func SQLiteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Driver.Engine = "sqlite"
	cfg.HistoryPath = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

// Context returns a context carrying cfg and a logger that writes to t.
func Context(t *testing.T, cfg *config.Config) context.Context {
	t.Helper()
	ctx := config.WithConfig(context.Background(), cfg)
	return config.WithLogger(ctx, rootutil.NewTestLogger(t))
}

// ExecuteCommand runs cmd with args under ctx, feeding it stdin when non-nil,
// and captures its output.
func ExecuteCommand(ctx context.Context, cmd *cobra.Command, stdin io.Reader, args ...string) (Output, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return Output{Out: out.String(), ErrOut: errOut.String()}, err
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContainsFold checks that s contains expected, ignoring case.
func AssertContainsFold(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(strings.ToLower(s), strings.ToLower(expected)) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}
