package engine

import "sync"

// Arena stores values behind Handle ids. Handles are never reused, so a
// stale handle cannot address a newer value. The zero Arena is ready to use.
type Arena[T any] struct {
	mu    sync.Mutex
	next  Handle
	items map[Handle]T
}

// Put stores v and returns its handle.
func (a *Arena[T]) Put(v T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.items == nil {
		a.items = make(map[Handle]T)
	}
	a.next++
	a.items[a.next] = v
	return a.next
}

// Get returns the value behind h.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.items[h]
	return v, ok
}

// Remove deletes h and returns the value it held.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.items[h]
	if ok {
		delete(a.items, h)
	}
	return v, ok
}

// Len returns the number of live handles.
func (a *Arena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}
