package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/litka-chat/litka/pkg/store"
)

// KVStore adapts a ProviderFactory to the store.KV contract.
type KVStore struct {
	factory *ProviderFactory
	timeout time.Duration
	now     func() time.Time
}

var _ store.KV = (*KVStore)(nil)

// NewKVStore opens the SQLite database at dbPath.
func NewKVStore(dbPath string) (*KVStore, error) {
	f, err := NewProviderFactory(dbPath)
	if err != nil {
		return nil, err
	}
	return &KVStore{
		factory: f,
		timeout: 10 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Factory exposes the underlying provider factory.
func (s *KVStore) Factory() *ProviderFactory {
	return s.factory
}

// Load returns every entry of a collection.
func (s *KVStore) Load(collection string) (map[string]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.factory.NonTx().ListEntries(ctx, collection)
}

// Save replaces a collection inside a single transaction.
func (s *KVStore) Save(collection string, mapping map[string]json.RawMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	tx, err := s.factory.Tx(ctx)
	if err != nil {
		return fmt.Errorf("datastore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.ClearCollection(ctx, collection); err != nil {
		return err
	}
	at := s.now()
	for key, value := range mapping {
		if err := tx.PutEntry(ctx, collection, key, value, at); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datastore: commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *KVStore) Close() error {
	return s.factory.Close()
}
