package action

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps action type strings to their kinds.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Kind)}
}

// DefaultRegistry returns a registry with every built-in kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(LogKind{})
	r.Register(SendEmailKind{})
	r.Register(UpdateCRMFieldKind{})
	r.Register(CreateTaskKind{})
	return r
}

// Register adds a kind. Panics on duplicate type to surface misconfiguration early.
func (r *Registry) Register(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[k.Type()]; exists {
		panic(fmt.Sprintf("action registry: duplicate type %q", k.Type()))
	}
	r.kinds[k.Type()] = k
}

// Get returns the kind for the given type.
func (r *Registry) Get(actionType string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[actionType]
	if !ok {
		return nil, fmt.Errorf("no action kind registered for type %q", actionType)
	}
	return k, nil
}

// Validate checks a configured action against its registered kind.
func (r *Registry) Validate(a Action) error {
	k, err := r.Get(a.Type)
	if err != nil {
		return err
	}
	return k.Validate(a.Params)
}

// Types returns all registered action type strings, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
