package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/litka-chat/litka/pkg/model"
)

func msg(i int) model.ChatMessage {
	return model.ChatMessage{Username: "alice", Message: fmt.Sprintf("m%d", i), Timestamp: int64(i)}
}

func TestEvictsOldestFirst(t *testing.T) {
	b := New(DefaultCapacity)
	for i := 0; i < 150; i++ {
		b.Append(msg(i))
	}

	got := b.Snapshot()
	if len(got) != 100 {
		t.Fatalf("Snapshot: want 100 entries, got %d", len(got))
	}
	if got[0].Message != "m50" || got[99].Message != "m149" {
		t.Fatalf("Snapshot: want m50..m149, got %s..%s", got[0].Message, got[99].Message)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp != got[i-1].Timestamp+1 {
			t.Fatalf("Snapshot: out of order at %d", i)
		}
	}
	if b.Total() != 150 {
		t.Errorf("Total: want 150, got %d", b.Total())
	}
}

func TestPartialFill(t *testing.T) {
	b := New(5)
	for i := 0; i < 3; i++ {
		b.Append(msg(i))
	}
	want := []model.ChatMessage{msg(0), msg(1), msg(2)}
	if diff := cmp.Diff(want, b.Snapshot(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
	if b.Len() != 3 || b.Capacity() != 5 {
		t.Errorf("Len/Capacity: got %d/%d", b.Len(), b.Capacity())
	}
}

func TestEmptyAndDefaultCapacity(t *testing.T) {
	b := New(0)
	if b.Capacity() != DefaultCapacity {
		t.Fatalf("Capacity: want %d, got %d", DefaultCapacity, b.Capacity())
	}
	if got := b.Snapshot(); len(got) != 0 {
		t.Fatalf("Snapshot: expected empty, got %d", len(got))
	}
}

func TestSnapshotIsolated(t *testing.T) {
	b := New(2)
	m := msg(0)
	m.Profile = model.DefaultProfile()
	_ = m.Profile.AddPrefix("x")
	b.Append(m)
	m.Profile.CustomPrefixes[0] = "mutated"

	got := b.Snapshot()
	got[0].Profile.CustomPrefixes[0] = "also mutated"

	again := b.Snapshot()
	if again[0].Profile.CustomPrefixes[0] != "x" {
		t.Fatalf("buffer shares profile slices with callers")
	}
}

func TestConcurrentAppend(t *testing.T) {
	b := New(DefaultCapacity)
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Append(msg(i))
			_ = b.Snapshot()
		}(i)
	}
	wg.Wait()
	if b.Len() != DefaultCapacity {
		t.Fatalf("Len: want %d, got %d", DefaultCapacity, b.Len())
	}
}
