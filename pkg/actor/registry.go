package actor

import (
	"errors"
	"fmt"
	"sync"
)

// Factory builds the actor for a name on first use.
type Factory func(name string) (*Actor, error)

// Registry resolves actor names to their single instance.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	actors  map[string]*Actor
}

// NewRegistry creates a registry that builds actors with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		actors:  make(map[string]*Actor),
	}
}

// Get returns the actor for name, creating it on first use. Every call with
// the same name returns the same instance.
func (r *Registry) Get(name string) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actors[name]; ok {
		return a, nil
	}

	a, err := r.factory(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create actor %s: %w", name, err)
	}
	r.actors[name] = a
	return a, nil
}

// Close closes every actor created so far.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, a := range r.actors {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
