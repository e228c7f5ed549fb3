// Package ignore records peripherals found to lack the expected GATT
// service or characteristics. Entries are never removed for the lifetime of
// a registry.
package ignore

import (
	"sort"
	"sync"

	central "github.com/rigado/blecentral"
)

// Registry is a concurrency safe set of device addresses.
type Registry struct {
	mu    sync.RWMutex
	addrs map[string]central.Addr
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{addrs: make(map[string]central.Addr)}
}

// Add records a. It reports whether a was not already present.
func (r *Registry) Add(a central.Addr) bool {
	if a == nil {
		return false
	}
	k := central.AddrKey(a)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.addrs[k]; ok {
		return false
	}
	r.addrs[k] = a
	return true
}

// Contains reports whether a has been added.
func (r *Registry) Contains(a central.Addr) bool {
	if a == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.addrs[central.AddrKey(a)]
	return ok
}

// Len returns the number of ignored devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.addrs)
}

// List returns the ignored addresses sorted by their string form.
func (r *Registry) List() []central.Addr {
	r.mu.RLock()
	out := make([]central.Addr, 0, len(r.addrs))
	for _, a := range r.addrs {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return central.AddrKey(out[i]) < central.AddrKey(out[j]) })
	return out
}
