package module

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kingrea/fieldstack/internal/manifest"
)

// Registry maintains the installed module set keyed by manifest name.
type Registry struct {
	mu        sync.RWMutex
	manifests map[string]manifest.Manifest
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{manifests: map[string]manifest.Manifest{}}
}

// Register installs a manifest. Returns an error if the name is empty or
// already taken; the first registration wins.
func (r *Registry) Register(m manifest.Manifest) error {
	if m.Name == "" {
		return fmt.Errorf("module: name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.manifests[m.Name]; exists {
		return fmt.Errorf("module: %s already registered", m.Name)
	}
	r.manifests[m.Name] = m.Clone()
	r.order = append(r.order, m.Name)
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(m manifest.Manifest) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// RegisterAll installs manifests in order and stops at the first failure.
func (r *Registry) RegisterAll(manifests []manifest.Manifest) error {
	for _, m := range manifests {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns a copy of the named manifest.
func (r *Registry) Lookup(name string) (manifest.Manifest, bool) {
	r.mu.RLock()
	m, ok := r.manifests[name]
	r.mu.RUnlock()
	if !ok {
		return manifest.Manifest{}, false
	}
	return m.Clone(), true
}

// Manifests returns copies of every manifest in registration order.
func (r *Registry) Manifests() []manifest.Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]manifest.Manifest, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.manifests[name].Clone())
	}
	return out
}

// Names returns a sorted list of registered module names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.manifests))
	for name := range r.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many modules are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
