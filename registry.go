package disburse

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds the continuations a chain may call by name.
//
// Chains never hold a continuation directly: a call node only records the
// name, and the executor resolves it here when the node fires. This is what
// lets the host invoke the same endpoints on its own.
type Registry struct {
	continuations *xsync.MapOf[ContinuationName, Continuation]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		continuations: xsync.NewMapOf[ContinuationName, Continuation](),
	}
}

// Register adds a continuation. Names are unique.
func (r *Registry) Register(c Continuation) error {
	if _, loaded := r.continuations.LoadOrStore(c.Name(), c); loaded {
		return fmt.Errorf("continuation with name '%s' already registered", c.Name())
	}
	return nil
}

// Get retrieves a continuation by its name.
func (r *Registry) Get(name ContinuationName) (Continuation, error) {
	c, ok := r.continuations.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContinuation, name)
	}
	return c, nil
}

// Names lists the registered continuation names.
func (r *Registry) Names() []ContinuationName {
	names := make([]ContinuationName, 0, r.continuations.Size())
	r.continuations.Range(func(name ContinuationName, _ Continuation) bool {
		names = append(names, name)
		return true
	})
	return names
}
