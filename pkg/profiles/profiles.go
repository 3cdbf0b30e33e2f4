// Package profiles holds per-user display state: profiles, special ranks,
// admin prefixes and private-messaging preferences.
package profiles

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/litka-chat/litka/pkg/model"
	"github.com/litka-chat/litka/pkg/store"
)

// Decoration is the per-message snapshot of a sender's display state.
type Decoration struct {
	Profile     model.Profile
	DisplayRank string
	PrefixColor model.Color
}

// Store is safe for concurrent use. Each mutation flushes only the
// collection it touched.
type Store struct {
	mu         sync.RWMutex
	profiles   map[string]model.Profile
	ranks      map[string]string
	prefixes   map[string]model.AdminPrefix
	pmSettings map[string]bool

	flusher *store.Flusher
}

// Options configures a Store.
type Options struct {
	// KV receives profile collections after every mutation. Nil disables persistence.
	KV store.KV
}

// New creates a Store and loads the four collections from opts.KV.
func New(opts Options) (*Store, error) {
	s := &Store{
		profiles:   make(map[string]model.Profile),
		ranks:      make(map[string]string),
		prefixes:   make(map[string]model.AdminPrefix),
		pmSettings: make(map[string]bool),
		flusher:    store.NewFlusher(opts.KV),
	}
	if opts.KV == nil {
		return s, nil
	}

	profiles, err := store.LoadInto[model.Profile](opts.KV, store.CollectionProfiles)
	if err != nil {
		return nil, fmt.Errorf("profiles: load: %w", err)
	}
	for name, p := range profiles {
		p.Normalize()
		s.profiles[name] = p
	}
	if s.ranks, err = store.LoadInto[string](opts.KV, store.CollectionRanks); err != nil {
		return nil, fmt.Errorf("profiles: load ranks: %w", err)
	}
	if s.prefixes, err = store.LoadInto[model.AdminPrefix](opts.KV, store.CollectionPrefixes); err != nil {
		return nil, fmt.Errorf("profiles: load prefixes: %w", err)
	}
	if s.pmSettings, err = store.LoadInto[bool](opts.KV, store.CollectionPMSettings); err != nil {
		return nil, fmt.Errorf("profiles: load pm settings: %w", err)
	}
	slog.Debug("profiles loaded",
		"profiles", len(s.profiles),
		"ranks", len(s.ranks),
		"prefixes", len(s.prefixes),
	)
	return s, nil
}

// ---- Profiles ----

// Ensure returns the user's profile, creating the default one if absent.
func (s *Store) Ensure(username string) model.Profile {
	s.mu.Lock()
	p, ok := s.profiles[username]
	if !ok {
		p = model.DefaultProfile()
		s.profiles[username] = p
	}
	out := p.Clone()
	s.mu.Unlock()

	if !ok {
		s.flushProfiles()
	}
	return out
}

// Get returns a copy of the user's profile.
func (s *Store) Get(username string) (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[username]
	if !ok {
		return model.Profile{}, false
	}
	return p.Clone(), true
}

// Update applies fn to the user's profile atomically. If fn returns an error
// the stored profile is left untouched and nothing is flushed.
func (s *Store) Update(username string, fn func(p *model.Profile) error) (model.Profile, error) {
	s.mu.Lock()
	p, ok := s.profiles[username]
	if !ok {
		p = model.DefaultProfile()
	}
	work := p.Clone()
	if err := fn(&work); err != nil {
		s.mu.Unlock()
		return p.Clone(), err
	}
	s.profiles[username] = work
	out := work.Clone()
	s.mu.Unlock()

	s.flushProfiles()
	return out, nil
}

// Decorate returns the profile and composed rank in one consistent read.
func (s *Store) Decorate(username string) Decoration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[username]
	if !ok {
		p = model.DefaultProfile()
	}
	d := Decoration{Profile: p.Clone()}
	var prefix *model.AdminPrefix
	if ap, ok := s.prefixes[username]; ok {
		prefix = &ap
		d.PrefixColor = ap.Color
	}
	d.DisplayRank = model.DisplayRank(s.ranks[username], prefix)
	return d
}

// ---- Special ranks ----

// SpecialRank returns the user's special rank, or "".
func (s *Store) SpecialRank(username string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranks[username]
}

// SetSpecialRank assigns a special rank. An empty rank clears it.
func (s *Store) SetSpecialRank(username, rank string) {
	s.mu.Lock()
	if rank == "" {
		delete(s.ranks, username)
	} else {
		s.ranks[username] = rank
	}
	s.mu.Unlock()
	s.flushRanks()
}

// SeedRanks assigns bootstrap ranks to users that have none yet, flushing
// once if anything changed.
func (s *Store) SeedRanks(ranks map[string]string) {
	changed := false
	s.mu.Lock()
	for name, rank := range ranks {
		if _, ok := s.ranks[name]; !ok && rank != "" {
			s.ranks[name] = rank
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.flushRanks()
	}
}

// ---- Admin prefixes ----

// AdminPrefix returns the user's admin-assigned prefix.
func (s *Store) AdminPrefix(username string) (model.AdminPrefix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ap, ok := s.prefixes[username]
	return ap, ok
}

// SetAdminPrefix assigns or replaces the user's admin prefix.
func (s *Store) SetAdminPrefix(username string, prefix model.AdminPrefix) {
	s.mu.Lock()
	s.prefixes[username] = prefix
	s.mu.Unlock()
	s.flushPrefixes()
}

// RemoveAdminPrefix removes the user's admin prefix, reporting whether one existed.
func (s *Store) RemoveAdminPrefix(username string) bool {
	s.mu.Lock()
	_, ok := s.prefixes[username]
	delete(s.prefixes, username)
	s.mu.Unlock()
	if ok {
		s.flushPrefixes()
	}
	return ok
}

// ---- Private messaging ----

// PMEnabled reports whether the user accepts private messages. Default true.
func (s *Store) PMEnabled(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled, ok := s.pmSettings[username]
	return !ok || enabled
}

// SetPMEnabled records the user's private-messaging preference.
func (s *Store) SetPMEnabled(username string, enabled bool) {
	s.mu.Lock()
	s.pmSettings[username] = enabled
	s.mu.Unlock()
	s.flushPMSettings()
}

// ---- Persistence ----

func (s *Store) flushProfiles() {
	s.flusher.Flush(store.CollectionProfiles, func() (map[string]json.RawMessage, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return store.Encode(s.profiles)
	})
}

func (s *Store) flushRanks() {
	s.flusher.Flush(store.CollectionRanks, func() (map[string]json.RawMessage, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return store.Encode(s.ranks)
	})
}

func (s *Store) flushPrefixes() {
	s.flusher.Flush(store.CollectionPrefixes, func() (map[string]json.RawMessage, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return store.Encode(s.prefixes)
	})
}

func (s *Store) flushPMSettings() {
	s.flusher.Flush(store.CollectionPMSettings, func() (map[string]json.RawMessage, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return store.Encode(s.pmSettings)
	})
}
