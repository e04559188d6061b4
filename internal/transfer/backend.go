package transfer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lftpcmd/lftpcmd/internal/profile"
)

// Factory creates a backend with its default settings.
type Factory func() Backend

var (
	backends   = make(map[string]Factory)
	backendsMu sync.RWMutex
)

// RegisterBackend makes a backend available under name.
// It panics if a backend with the same name is already registered.
func RegisterBackend(name string, f Factory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if _, exists := backends[name]; exists {
		panic(fmt.Sprintf("backend %q is already registered", name))
	}
	backends[name] = f
}

// NewBackend creates the backend registered under name.
func NewBackend(name string) (Backend, error) {
	backendsMu.RLock()
	f, ok := backends[name]
	backendsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Backends())
	}
	return f(), nil
}

// Backends returns the sorted names of all registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New opens a session on the backend named by p.Backend.
func New(p profile.Profile) (*Session, error) {
	b, err := NewBackend(p.Backend)
	if err != nil {
		return nil, err
	}
	return Open(b, p), nil
}
