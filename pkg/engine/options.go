package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// InMemory is the location marker for a transient in-memory database.
const InMemory = ":memory:"

// SessionOptions are the connection-scoped limits negotiated once at open.
// Zero values mean "engine default".
type SessionOptions struct {
	// SessionTimeout expires a session that has been idle for longer.
	SessionTimeout time.Duration
	// QueryTimeout bounds every engine call made on the session.
	QueryTimeout time.Duration
	// MemoryLimitMB caps engine memory in megabytes.
	MemoryLimitMB int
	// Threads caps the engine's worker threads.
	Threads int
	// Params carries engine-specific settings.
	Params map[string]any
}

// IsInMemory reports whether location selects an in-memory database.
func IsInMemory(location string) bool {
	location = strings.TrimSpace(location)
	return location == "" || location == InMemory
}

// ResolveLocation maps a location to the database path an engine opens.
// In-memory locations pass through as InMemory. Any other location is a
// directory, created if absent, holding a database file called fileName.
func ResolveLocation(location, fileName string) (string, error) {
	if IsInMemory(location) {
		return InMemory, nil
	}
	info, err := os.Stat(location)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("location %s is not a directory", location)
	case err != nil && !os.IsNotExist(err):
		return "", fmt.Errorf("failed to stat location %s: %w", location, err)
	case err != nil:
		if err := os.MkdirAll(location, 0o750); err != nil {
			return "", fmt.Errorf("failed to create location %s: %w", location, err)
		}
	}
	return filepath.Join(location, fileName), nil
}
