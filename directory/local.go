package directory

import (
	"context"
	"errors"

	"github.com/fortressi/disburse"
)

// DefaultRecipients is served for identifiers nothing was stored under.
var DefaultRecipients = []disburse.AccountID{"alice.foo", "bob.foo"}

// Local answers lookups from a Store in-process.
type Local struct {
	store    Store
	defaults []disburse.AccountID
}

var _ disburse.Directory = (*Local)(nil)

// NewLocal creates a directory over store. Unknown identifiers get defaults,
// or ErrNotFound when none are given.
func NewLocal(store Store, defaults ...disburse.AccountID) *Local {
	return &Local{store: store, defaults: defaults}
}

// ListRecipients implements disburse.Directory.
func (l *Local) ListRecipients(ctx context.Context, id disburse.AccountID) ([]disburse.AccountID, error) {
	list, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) && len(l.defaults) > 0 {
		return append([]disburse.AccountID(nil), l.defaults...), nil
	}
	return list, err
}

// Mock replaces the list served for id.
func (l *Local) Mock(ctx context.Context, id disburse.AccountID, recipients []disburse.AccountID) error {
	return l.store.Put(ctx, id, recipients)
}
