package cipher

import (
	"fmt"
	"strings"
	"sync"
)

// Entry describes a built-in cipher known to a Registry.
type Entry struct {
	ID          string
	DisplayName string
	Description string
	New         Constructor
}

// Registry maps cipher ids to constructors. Lookups are exact-match and the
// listing order is the registration order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an entry to the registry.
func (r *Registry) Register(e Entry) error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("cipher id cannot be empty")
	}
	if e.New == nil {
		return fmt.Errorf("cipher %s has no constructor", e.ID)
	}
	if e.DisplayName == "" {
		e.DisplayName = e.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.ID]; exists {
		return fmt.Errorf("cipher %s is already registered", e.ID)
	}
	r.entries[e.ID] = e
	r.order = append(r.order, e.ID)
	return nil
}

// MustRegister is Register for package initialisation paths.
func (r *Registry) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

// Lookup returns the entry registered under id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return e, ok
}

// Resolve instantiates the cipher registered under id. Unknown ids fail with
// *UnknownCipherError and constructor failures with *CompileError.
func (r *Registry) Resolve(id string) (Cipher, error) {
	e, ok := r.Lookup(id)
	if !ok {
		return nil, &UnknownCipherError{ID: id}
	}
	c, err := e.New()
	if err != nil {
		return nil, &CompileError{Message: "construct " + id, Err: err}
	}
	if c == nil {
		return nil, &CompileError{Message: "construct " + id + ": constructor returned nil"}
	}
	return c, nil
}

// List returns every entry in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Len reports the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
