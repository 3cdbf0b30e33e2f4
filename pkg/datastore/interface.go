package datastore

import (
	"context"
	"encoding/json"
	"time"
)

type DataProviderFactory interface {
	NonTx() DataStore
	Tx(context.Context) (DataStoreTx, error)
}

type DataStoreTx interface {
	DataStore
	CollectionWriteProvider
	Rollback() error
	Commit() error
}

// DataStore defines the read side of the SQLite key-value schema.
// Writes go through a DataStoreTx so a collection is replaced atomically.
type DataStore interface {
	ConfigReadProvider
	CollectionReadProvider
}

// Compile-time check: *ProviderFactory implements DataProviderFactory.
var _ DataProviderFactory = (*ProviderFactory)(nil)

type ConfigReadProvider interface {
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

type CollectionReadProvider interface {
	ListEntries(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	ListCollections(ctx context.Context) ([]string, error)
	UpdatedAt(ctx context.Context, collection string) (time.Time, error)
}

type CollectionWriteProvider interface {
	ClearCollection(ctx context.Context, collection string) error
	PutEntry(ctx context.Context, collection, key string, value json.RawMessage, at time.Time) error
}
