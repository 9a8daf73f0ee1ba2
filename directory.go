package disburse

import (
	"context"
	"fmt"
)

// Directory lists the recipients registered under a directory identifier.
type Directory interface {
	ListRecipients(ctx context.Context, id AccountID) ([]AccountID, error)
}

// DirectoryFunc adapts a function to the Directory interface.
type DirectoryFunc func(ctx context.Context, id AccountID) ([]AccountID, error)

// ListRecipients calls f.
func (f DirectoryFunc) ListRecipients(ctx context.Context, id AccountID) ([]AccountID, error) {
	return f(ctx, id)
}

// DirectoryClient looks up recipient lists on behalf of the engine.
type DirectoryClient struct {
	dir Directory
	gas Gas
}

// NewDirectoryClient creates a client that charges gas per lookup.
func NewDirectoryClient(dir Directory, gas Gas) *DirectoryClient {
	return &DirectoryClient{dir: dir, gas: gas}
}

// Lookup fetches the recipients registered under id. The id is validated
// before anything is charged or called.
func (c *DirectoryClient) Lookup(ctx context.Context, budget *ResourceBudget, id AccountID) ([]AccountID, error) {
	if err := ValidateDirectoryID(id); err != nil {
		return nil, err
	}
	if c.dir == nil {
		return nil, fmt.Errorf("%w: no directory configured", ErrDirectoryLookupFailed)
	}
	if err := budget.Consume(c.gas); err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}

	ids, err := c.dir.ListRecipients(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryLookupFailed, id, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoRecipientsFound, id)
	}
	return ids, nil
}
