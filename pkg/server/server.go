// Package server implements the Litka chat relay: session registry, command
// router, WebSocket transport and the HTTP surface around them.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/litka-chat/litka/pkg/accounts"
	"github.com/litka-chat/litka/pkg/history"
	"github.com/litka-chat/litka/pkg/moderation"
	"github.com/litka-chat/litka/pkg/profiles"
	"github.com/litka-chat/litka/pkg/rbac"
	"github.com/litka-chat/litka/pkg/store"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store store.KV
	// Now overrides the clock used for timestamps, spam windows and mutes.
	Now func() time.Time
}

// Server is the main Litka server.
type Server struct {
	cfg        Config
	store      store.KV
	now        func() time.Time
	accounts   *accounts.Store
	profiles   *profiles.Store
	moderation *moderation.Engine
	history    *history.Buffer
	sessions   *Registry
	roster     *rbac.Roster
	metrics    *Metrics
	msgLimiter *keyedLimiter
	httpSrv    *http.Server

	liveMu sync.Mutex
	live   map[string]Conn // every open transport, authenticated or not

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server and loads persisted state from deps.Store.
func New(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server: missing store dependency")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		now:      deps.Now,
		history:  history.New(cfg.HistorySize),
		sessions: NewRegistry(),
		roster:   rbac.NewRoster(cfg.PrivilegedUsers),
		live:     make(map[string]Conn),
		ctx:      ctx,
		cancel:   cancel,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.metrics = NewMetrics(s.sessions.Count)
	s.msgLimiter = newKeyedLimiter(cfg.RateLimit.MessagesPerSecond, cfg.RateLimit.MessageBurst, 0)

	var err error
	s.profiles, err = profiles.New(profiles.Options{KV: deps.Store})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("server: %w", err)
	}
	s.accounts, err = accounts.New(accounts.Options{
		KV:         deps.Store,
		OnRegister: func(username string) { s.profiles.Ensure(username) },
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("server: %w", err)
	}
	s.moderation = moderation.New(moderation.Options{
		Config: moderation.Config{
			Window:       cfg.Spam.Window,
			Threshold:    cfg.Spam.Threshold,
			MuteDuration: cfg.Spam.Mute,
		},
		OnSpamMute: s.announceSpamMute,
	})
	if len(cfg.SpecialRanks) > 0 {
		s.profiles.SeedRanks(cfg.SpecialRanks)
	}

	slog.Debug("server state loaded",
		"accounts", s.accounts.Count(),
		"privileged", len(cfg.PrivilegedUsers),
	)
	return s, nil
}

// Accounts returns the credential store.
func (s *Server) Accounts() *accounts.Store {
	return s.accounts
}

// Profiles returns the profile store.
func (s *Server) Profiles() *profiles.Store {
	return s.profiles
}

// Moderation returns the moderation engine.
func (s *Server) Moderation() *moderation.Engine {
	return s.moderation
}

// History returns the public message buffer.
func (s *Server) History() *history.Buffer {
	return s.history
}

// Sessions returns the session registry.
func (s *Server) Sessions() *Registry {
	return s.sessions
}

// Roster returns the privileged-user roster.
func (s *Server) Roster() *rbac.Roster {
	return s.roster
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) nowMillis() int64 {
	return s.now().UnixMilli()
}
