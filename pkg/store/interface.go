// Package store defines the key-value persistence contract used by the
// account and profile stores, with in-memory and JSON file backends.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names flushed by the stores.
const (
	CollectionUsers      = "users"
	CollectionProfiles   = "profiles"
	CollectionRanks      = "ranks"
	CollectionPrefixes   = "prefixes"
	CollectionPMSettings = "pm_settings"
)

// Collections lists every collection in load order.
var Collections = []string{
	CollectionUsers,
	CollectionProfiles,
	CollectionRanks,
	CollectionPrefixes,
	CollectionPMSettings,
}

var ErrClosed = errors.New("store: closed")

// KV persists whole collections of JSON documents keyed by username.
// Implementations include MemoryStore, FileStore, and the SQLite
// datastore.KVStore.
type KV interface {
	// Load returns every entry of a collection. A missing collection is empty, not an error.
	Load(collection string) (map[string]json.RawMessage, error)

	// Save replaces the collection with mapping.
	Save(collection string, mapping map[string]json.RawMessage) error

	// Close releases the underlying storage.
	Close() error
}

// LoadInto decodes a collection into typed values.
func LoadInto[T any](kv KV, collection string) (map[string]T, error) {
	raw, err := kv.Load(collection)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	for key, data := range raw {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("store: decode %s/%s: %w", collection, key, err)
		}
		out[key] = v
	}
	return out, nil
}

// SaveFrom encodes typed values and saves them as a collection.
func SaveFrom[T any](kv KV, collection string, values map[string]T) error {
	raw, err := Encode(values)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", collection, err)
	}
	return kv.Save(collection, raw)
}

// Encode marshals each value of a map.
func Encode[T any](values map[string]T) (map[string]json.RawMessage, error) {
	raw := make(map[string]json.RawMessage, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		raw[key] = data
	}
	return raw, nil
}
