// Package features holds runtime feature flags.
package features

import "sync"

// Flag names.
const (
	// CacheEnabled gates the active-deals read cache.
	CacheEnabled = "cache_enabled"
	// EventHooksEnabled gates the in-process event manager.
	EventHooksEnabled = "event_hooks_enabled"
)

// Manager is a concurrency-safe flag registry.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewManager creates an empty flag registry.
func NewManager() *Manager {
	return &Manager{flags: make(map[string]bool)}
}

// Register sets a flag's initial state.
func (m *Manager) Register(name string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = enabled
}

// IsEnabled reports a flag's state; unknown flags are disabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.flags[name]
}

// Set changes a flag's state at runtime.
func (m *Manager) Set(name string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = enabled
}
