package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fortressi/disburse"
)

// FileStore persists each list as a JSON file named after its identifier.
type FileStore struct {
	basePath string
	mu       sync.Mutex // Protects file operations
}

// NewFileStore creates a new file-based store under basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Get reads the list stored under id.
func (f *FileStore) Get(_ context.Context, id disburse.AccountID) ([]disburse.AccountID, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.filename(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}

	var list []disburse.AccountID
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal directory %s: %w", id, err)
	}
	return list, nil
}

// Put writes recipients to the file for id.
func (f *FileStore) Put(_ context.Context, id disburse.AccountID, recipients []disburse.AccountID) error {
	// Identifiers become file names.
	if err := id.Validate(); err != nil {
		return err
	}
	if recipients == nil {
		recipients = []disburse.AccountID{}
	}

	data, err := json.MarshalIndent(recipients, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal directory: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.WriteFile(f.filename(id), data, 0644); err != nil {
		return fmt.Errorf("failed to write directory file: %w", err)
	}
	return nil
}

func (f *FileStore) filename(id disburse.AccountID) string {
	return filepath.Join(f.basePath, string(id)+".json")
}
