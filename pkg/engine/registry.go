package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds an engine. A nil logger means discard.
type Factory func(*slog.Logger) Engine

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an engine factory to the registry.
// Called by engine implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves an engine factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates an engine instance by registered name.
func New(name string, logger *slog.Logger) (Engine, error) {
	if name == "" {
		return nil, fmt.Errorf("engine name not specified")
	}

	factory, ok := Get(name)
	if !ok {
		return nil, &UnknownEngineError{
			Name:      name,
			Available: List(),
		}
	}
	return factory(logger), nil
}

// List returns all registered engine names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an engine name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownEngineError is returned when an unknown engine is requested.
type UnknownEngineError struct {
	Name      string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine %q\nAvailable engines: %v\nHint: Check the engine setting in leapdriver.yaml", e.Name, e.Available)
}
