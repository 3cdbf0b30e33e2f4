package moderation

import (
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestRecordMessageTriggersMute(t *testing.T) {
	var muted []string
	e := New(Options{OnSpamMute: func(u string, _ time.Time) { muted = append(muted, u) }})

	if e.RecordMessage("alice", "buy gold", t0) {
		t.Fatalf("1st message: unexpected mute")
	}
	if e.RecordMessage("alice", "buy gold", t0.Add(2*time.Second)) {
		t.Fatalf("2nd message: unexpected mute")
	}
	if !e.RecordMessage("alice", "buy gold", t0.Add(4*time.Second)) {
		t.Fatalf("3rd message: expected mute")
	}
	if !e.IsMuted("alice", t0.Add(5*time.Second)) {
		t.Fatalf("IsMuted: expected true right after spam")
	}
	if len(muted) != 1 || muted[0] != "alice" {
		t.Fatalf("OnSpamMute: want [alice], got %v", muted)
	}
	if e.IsMuted("bob", t0) {
		t.Fatalf("IsMuted(bob): other users unaffected")
	}
}

func TestRecordMessageNoMute(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		gaps  []time.Duration
	}{
		{"different texts", []string{"a", "b", "a", "b"}, []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second}},
		{"outside window", []string{"x", "x", "x"}, []time.Duration{0, 6 * time.Second, 11 * time.Second}},
		{"case differs", []string{"Hi", "hi", "HI"}, []time.Duration{0, time.Second, 2 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Options{})
			for i, text := range tt.texts {
				if e.RecordMessage("alice", text, t0.Add(tt.gaps[i])) {
					t.Fatalf("message %d (%q): unexpected mute", i, text)
				}
			}
		})
	}
}

func TestWindowBoundaryInclusive(t *testing.T) {
	e := New(Options{})
	e.RecordMessage("alice", "x", t0)
	e.RecordMessage("alice", "x", t0.Add(5*time.Second))
	if !e.RecordMessage("alice", "x", t0.Add(10*time.Second)) {
		t.Fatalf("entry exactly one window old should still count")
	}
}

func TestMuteClearsWindow(t *testing.T) {
	e := New(Options{Config: Config{MuteDuration: time.Minute}})
	for i := 0; i < 3; i++ {
		e.RecordMessage("alice", "x", t0.Add(time.Duration(i)*time.Second))
	}
	after := t0.Add(2 * time.Minute)
	if e.IsMuted("alice", after) {
		t.Fatalf("mute should have expired")
	}
	if e.RecordMessage("alice", "x", after) {
		t.Fatalf("window must be cleared by the mute; one message should not re-trigger")
	}
}

func TestLazyExpiry(t *testing.T) {
	e := New(Options{})
	until := e.Mute("alice", 20*time.Minute, t0)

	if !e.IsMuted("alice", until) {
		t.Fatalf("IsMuted at expiry instant: expected still muted")
	}
	if e.IsMuted("alice", until.Add(time.Millisecond)) {
		t.Fatalf("IsMuted past expiry: expected false")
	}
	e.mu.Lock()
	_, present := e.mutes["alice"]
	e.mu.Unlock()
	if present {
		t.Fatalf("expired record should be evicted on check")
	}
}

func TestRemainingMinutesDecreases(t *testing.T) {
	e := New(Options{})
	e.Mute("alice", 20*time.Minute, t0)

	tests := []struct {
		at   time.Duration
		want int
	}{
		{0, 20},
		{30 * time.Second, 20},
		{time.Minute, 19},
		{19*time.Minute + 1*time.Second, 1},
		{20 * time.Minute, 0},
	}
	for _, tt := range tests {
		d, ok := e.Remaining("alice", t0.Add(tt.at))
		if !ok {
			t.Fatalf("Remaining at +%s: expected active mute", tt.at)
		}
		if got := RemainingMinutes(d); got != tt.want {
			t.Errorf("RemainingMinutes at +%s = %d, want %d", tt.at, got, tt.want)
		}
	}
}

func TestUnmute(t *testing.T) {
	e := New(Options{})
	if e.Unmute("alice") {
		t.Fatalf("Unmute: nothing to lift")
	}
	e.Mute("alice", time.Hour, t0)
	if !e.Unmute("alice") {
		t.Fatalf("Unmute: expected true")
	}
	if e.IsMuted("alice", t0) {
		t.Fatalf("IsMuted after Unmute: expected false")
	}
}

func TestSweep(t *testing.T) {
	e := New(Options{})
	e.Mute("alice", time.Minute, t0)
	e.Mute("bob", time.Hour, t0)
	e.RecordMessage("carol", "hi", t0)

	removed := e.Sweep(t0.Add(2 * time.Minute))
	if removed != 2 {
		t.Fatalf("Sweep: want 2 removed, got %d", removed)
	}
	if !e.IsMuted("bob", t0.Add(2*time.Minute)) {
		t.Fatalf("Sweep: active mute evicted")
	}
}

func TestConcurrentRecordSameUser(t *testing.T) {
	e := New(Options{Config: Config{Threshold: 1000}})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.RecordMessage("alice", "x", t0)
		}()
	}
	wg.Wait()

	e.mu.Lock()
	n := len(e.windows["alice"])
	e.mu.Unlock()
	if n != 100 {
		t.Fatalf("lost updates: window has %d entries, want 100", n)
	}
}
