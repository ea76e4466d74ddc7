package core

import (
	"sync"
	"time"
)

// Warning is a non-fatal advisory raised by the driver or the engine.
type Warning struct {
	Message string
	Code    string
	At      time.Time
}

// Warnings is an appendable warning chain. The zero value is ready to use.
type Warnings struct {
	mu   sync.Mutex
	list []Warning
}

// Add appends a warning to the chain.
func (w *Warnings) Add(msg, code string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.list = append(w.list, Warning{Message: msg, Code: code, At: time.Now().UTC()})
}

// List returns a copy of the chain, oldest first.
func (w *Warnings) List() []Warning {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Warning, len(w.list))
	copy(out, w.list)
	return out
}

// Clear empties the chain.
func (w *Warnings) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.list = nil
}
