package report

import (
	"sync"

	"github.com/alejoacosta74/profiler/pkg/perf"
)

// Registry tracks captured profile artifacts by id for the lifetime of the
// process, until retention cleanup deletes them.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*perf.CapturedProfile
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*perf.CapturedProfile)}
}

// Register adds a captured profile.
func (r *Registry) Register(p *perf.CapturedProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}

// Get returns the profile with the given id.
func (r *Registry) Get(id string) (*perf.CapturedProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	return p, ok
}

// Remove deletes the registry entry for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, id)
}

// Snapshot returns a copy of the id to profile mapping.
func (r *Registry) Snapshot() map[string]*perf.CapturedProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*perf.CapturedProfile, len(r.profiles))
	for id, p := range r.profiles {
		cp := *p
		out[id] = &cp
	}
	return out
}

// Count returns the number of registered profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
