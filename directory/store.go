// Package directory serves recipient lists keyed by directory identifier.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortressi/disburse"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrNotFound is returned when no list is stored under an identifier.
var ErrNotFound = errors.New("directory not found")

// Store defines the interface for persisting recipient lists.
type Store interface {
	// Get returns the list stored under id
	Get(ctx context.Context, id disburse.AccountID) ([]disburse.AccountID, error)

	// Put replaces the list stored under id
	Put(ctx context.Context, id disburse.AccountID, recipients []disburse.AccountID) error
}

// MemoryStore keeps lists in memory.
type MemoryStore struct {
	lists *xsync.MapOf[disburse.AccountID, []disburse.AccountID]
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists: xsync.NewMapOf[disburse.AccountID, []disburse.AccountID](),
	}
}

// Get retrieves a list from memory.
func (m *MemoryStore) Get(_ context.Context, id disburse.AccountID) ([]disburse.AccountID, error) {
	list, ok := m.lists.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	// Return a copy to avoid external modifications
	return append([]disburse.AccountID(nil), list...), nil
}

// Put stores a copy of recipients.
func (m *MemoryStore) Put(_ context.Context, id disburse.AccountID, recipients []disburse.AccountID) error {
	m.lists.Store(id, append([]disburse.AccountID(nil), recipients...))
	return nil
}
