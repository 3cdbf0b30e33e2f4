// Package moderation tracks per-user spam windows and active mutes.
//
// Expiry is lazy: every read path re-checks the clock and evicts stale
// records, so Sweep is an optional memory bound rather than a correctness
// requirement.
package moderation

import (
	"log/slog"
	"sync"
	"time"
)

// Config holds the spam detection thresholds.
type Config struct {
	Window       time.Duration // trailing span for counting repeats
	Threshold    int           // identical messages within Window that trigger a mute
	MuteDuration time.Duration // length of an automatic mute
}

// DefaultConfig returns three identical messages in ten seconds, twenty minute mute.
func DefaultConfig() Config {
	return Config{
		Window:       10 * time.Second,
		Threshold:    3,
		MuteDuration: 20 * time.Minute,
	}
}

type entry struct {
	text   string
	sentAt time.Time
}

// Engine is safe for concurrent use. Every read-modify-write on a user's
// window or mute record happens under one lock acquisition.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string][]entry
	mutes   map[string]time.Time // username -> expiresAt

	onSpamMute func(username string, until time.Time)
}

// Options configures an Engine.
type Options struct {
	Config Config
	// OnSpamMute runs outside the lock when RecordMessage triggers a mute.
	OnSpamMute func(username string, until time.Time)
}

// New creates an Engine. Zero config fields fall back to DefaultConfig.
func New(opts Options) *Engine {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MuteDuration <= 0 {
		cfg.MuteDuration = def.MuteDuration
	}
	return &Engine{
		cfg:        cfg,
		windows:    make(map[string][]entry),
		mutes:      make(map[string]time.Time),
		onSpamMute: opts.OnSpamMute,
	}
}

// Config returns the effective thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// RecordMessage appends text to the user's spam window and reports whether
// it triggered a new mute. When it does, the caller must drop the message.
func (e *Engine) RecordMessage(username, text string, now time.Time) bool {
	e.mu.Lock()
	win := prune(e.windows[username], now, e.cfg.Window)
	win = append(win, entry{text: text, sentAt: now})

	matches := 0
	for _, en := range win {
		if en.text == text {
			matches++
		}
	}
	if matches < e.cfg.Threshold {
		e.windows[username] = win
		e.mu.Unlock()
		return false
	}

	until := now.Add(e.cfg.MuteDuration)
	e.mutes[username] = until
	delete(e.windows, username)
	e.mu.Unlock()

	slog.Info("user muted for spam", "user", username, "until", until)
	if e.onSpamMute != nil {
		e.onSpamMute(username, until)
	}
	return true
}

// IsMuted reports whether a mute is active, evicting it if it has expired.
func (e *Engine) IsMuted(username string, now time.Time) bool {
	_, ok := e.Remaining(username, now)
	return ok
}

// Remaining returns the time left on an active mute.
func (e *Engine) Remaining(username string, now time.Time) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.mutes[username]
	if !ok {
		return 0, false
	}
	if now.After(until) {
		delete(e.mutes, username)
		return 0, false
	}
	return until.Sub(now), true
}

// Mute sets or replaces a mute lasting d from now and returns its expiry.
func (e *Engine) Mute(username string, d time.Duration, now time.Time) time.Time {
	until := now.Add(d)
	e.mu.Lock()
	e.mutes[username] = until
	e.mu.Unlock()
	return until
}

// Unmute lifts a mute, reporting whether one was recorded.
func (e *Engine) Unmute(username string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.mutes[username]
	delete(e.mutes, username)
	return ok
}

// Sweep evicts expired mutes and spam windows with no recent entries.
// It returns how many records were removed.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for name, until := range e.mutes {
		if now.After(until) {
			delete(e.mutes, name)
			removed++
		}
	}
	for name, win := range e.windows {
		win = prune(win, now, e.cfg.Window)
		if len(win) == 0 {
			delete(e.windows, name)
			removed++
			continue
		}
		e.windows[name] = win
	}
	return removed
}

// StartSweeper runs Sweep every interval until done is closed.
func (e *Engine) StartSweeper(interval time.Duration, now func() time.Time, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if n := e.Sweep(now()); n > 0 {
					slog.Debug("moderation sweep", "removed", n)
				}
			}
		}
	}()
}

// RemainingMinutes rounds a remaining mute duration up to whole minutes.
func RemainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// prune drops entries older than window, reusing the backing array.
func prune(win []entry, now time.Time, window time.Duration) []entry {
	kept := win[:0]
	for _, en := range win {
		if now.Sub(en.sentAt) <= window {
			kept = append(kept, en)
		}
	}
	return kept
}
