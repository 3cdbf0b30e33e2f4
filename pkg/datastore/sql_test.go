package datastore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/litka-chat/litka/pkg/datastore"
	"github.com/litka-chat/litka/pkg/model"
	"github.com/litka-chat/litka/pkg/store"
)

func NewTestSqlConn(t *testing.T) (*datastore.KVStore, error) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	st, err := datastore.NewKVStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("store_test: failed to open db: %w", err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			fmt.Printf("Error closing database: %v\n", err)
		}
	})

	return st, nil
}

func TestSchemaVersion(t *testing.T) {
	st, err := NewTestSqlConn(t)
	if err != nil {
		t.Fatalf("failed to open test connection: %v", err)
	}

	got, err := st.Factory().NonTx().SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: unexpected error: %v", err)
	}
	if got != 2 {
		t.Errorf("SchemaVersion: want 2, got %d", got)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := datastore.NewKVStore(dbPath)
	if err != nil {
		t.Fatalf("NewKVStore: unexpected error: %v", err)
	}
	if err := first.Save(store.CollectionRanks, map[string]json.RawMessage{"alice": json.RawMessage(`"Developer"`)}); err != nil {
		t.Fatalf("Save: unexpected error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}

	second, err := datastore.NewKVStore(dbPath)
	if err != nil {
		t.Fatalf("NewKVStore (reopen): unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	got, err := store.LoadInto[string](second, store.CollectionRanks)
	if err != nil {
		t.Fatalf("LoadInto: unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"alice": "Developer"}, got); diff != "" {
		t.Errorf("ranks mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	type tcase struct {
		collection string
		values     map[string]any
	}

	tcases := map[string]tcase{
		"empty_collection": {
			collection: store.CollectionPrefixes,
			values:     map[string]any{},
		},
		"accounts": {
			collection: store.CollectionUsers,
			values: map[string]any{
				"alice": model.Account{Username: "alice", PasswordHash: "00ff"},
				"bob":   model.Account{Username: "bob", PasswordHash: "ff00"},
			},
		},
		"injection_key": { // keys are bound parameters, never interpolated
			collection: store.CollectionRanks,
			values: map[string]any{
				"' OR '1'='1": "Developer",
			},
		},
		"unicode_values": {
			collection: store.CollectionProfiles,
			values: map[string]any{
				"ñoño": model.Profile{BracketStyle: "««»»", BracketColor: model.ColorGold, MessageColor: model.ColorWhite, CustomPrefixes: []string{"★"}},
			},
		},
	}

	fn := func(tc tcase) func(*testing.T) {
		return func(t *testing.T) {
			t.Parallel()
			st, err := NewTestSqlConn(t)
			if err != nil {
				t.Fatalf("failed to open test connection: %v", err)
			}

			want, err := store.Encode(tc.values)
			if err != nil {
				t.Fatalf("Encode: unexpected error: %v", err)
			}
			if err := st.Save(tc.collection, want); err != nil {
				t.Fatalf("Save: unexpected error: %v", err)
			}

			got, err := st.Load(tc.collection)
			if err != nil {
				t.Fatalf("Load: unexpected error: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("st.Load mismatch (-want +got):\n%s", diff)
			}
		}
	}

	for name, tc := range tcases {
		t.Run(name, fn(tc))
	}
}

func TestSaveReplaces(t *testing.T) {
	st, err := NewTestSqlConn(t)
	if err != nil {
		t.Fatalf("failed to open test connection: %v", err)
	}

	if err := store.SaveFrom(st, store.CollectionPMSettings, map[string]bool{"alice": false, "bob": true}); err != nil {
		t.Fatalf("SaveFrom: unexpected error: %v", err)
	}
	if err := store.SaveFrom(st, store.CollectionPMSettings, map[string]bool{"bob": false}); err != nil {
		t.Fatalf("SaveFrom: unexpected error: %v", err)
	}

	got, err := store.LoadInto[bool](st, store.CollectionPMSettings)
	if err != nil {
		t.Fatalf("LoadInto: unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]bool{"bob": false}, got); diff != "" {
		t.Errorf("pm settings mismatch (-want +got):\n%s", diff)
	}

	names, err := st.Factory().NonTx().ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections: unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{store.CollectionPMSettings}, names); diff != "" {
		t.Errorf("collections mismatch (-want +got):\n%s", diff)
	}

	updated, err := st.Factory().NonTx().UpdatedAt(context.Background(), store.CollectionPMSettings)
	if err != nil {
		t.Fatalf("UpdatedAt: unexpected error: %v", err)
	}
	if updated.IsZero() {
		t.Errorf("UpdatedAt: expected non-zero time")
	}
}

func TestSaveInvalidJSONRollsBack(t *testing.T) {
	st, err := NewTestSqlConn(t)
	if err != nil {
		t.Fatalf("failed to open test connection: %v", err)
	}

	good := map[string]json.RawMessage{"alice": json.RawMessage(`"Developer"`)}
	if err := st.Save(store.CollectionRanks, good); err != nil {
		t.Fatalf("Save: unexpected error: %v", err)
	}

	bad := map[string]json.RawMessage{"bob": json.RawMessage(`{oops`)}
	if err := st.Save(store.CollectionRanks, bad); err == nil {
		t.Fatalf("Save: expected error for invalid JSON")
	}

	got, err := st.Load(store.CollectionRanks)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if diff := cmp.Diff(good, got); diff != "" {
		t.Errorf("failed save must leave collection intact (-want +got):\n%s", diff)
	}
}
