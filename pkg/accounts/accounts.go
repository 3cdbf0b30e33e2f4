// Package accounts is the credential store: registered accounts and the
// session tokens issued to them.
package accounts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/litka-chat/litka/pkg/crypto"
	"github.com/litka-chat/litka/pkg/model"
	"github.com/litka-chat/litka/pkg/store"
)

// Store holds accounts keyed by username and live session tokens.
// Tokens are kept only as SHA-256 hashes and live until Revoke or restart.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	tokens   map[string]string // token hash -> username

	flusher    *store.Flusher
	onRegister func(username string)
}

// Options configures a Store.
type Options struct {
	// KV receives the users collection after every mutation. Nil disables persistence.
	KV store.KV
	// OnRegister runs after a new account is stored, outside the store lock.
	OnRegister func(username string)
}

// New creates a Store and loads existing accounts from opts.KV.
func New(opts Options) (*Store, error) {
	s := &Store{
		accounts:   make(map[string]model.Account),
		tokens:     make(map[string]string),
		flusher:    store.NewFlusher(opts.KV),
		onRegister: opts.OnRegister,
	}
	if opts.KV != nil {
		loaded, err := store.LoadInto[model.Account](opts.KV, store.CollectionUsers)
		if err != nil {
			return nil, fmt.Errorf("accounts: load: %w", err)
		}
		for name, acct := range loaded {
			if acct.Username == "" {
				acct.Username = name
			}
			s.accounts[name] = acct
		}
		slog.Debug("accounts loaded", "count", len(s.accounts))
	}
	return s, nil
}

// Register creates an account and returns a fresh session token.
func (s *Store) Register(username, password string) (string, error) {
	if err := model.ValidateUsername(username); err != nil {
		return "", err
	}
	if password == "" {
		return "", model.ErrEmptyPassword
	}
	hash := crypto.HashPassword(username, password)

	s.mu.Lock()
	if _, exists := s.accounts[username]; exists {
		s.mu.Unlock()
		return "", model.ErrAlreadyExists
	}
	s.accounts[username] = model.Account{Username: username, PasswordHash: hash}
	s.mu.Unlock()

	s.flush()
	if s.onRegister != nil {
		s.onRegister(username)
	}
	return s.issue(username)
}

// Login verifies credentials and returns a new session token. Earlier tokens
// for the same user stay valid.
func (s *Store) Login(username, password string) (string, error) {
	s.mu.RLock()
	acct, ok := s.accounts[username]
	s.mu.RUnlock()
	if !ok {
		return "", model.ErrNotFound
	}
	if !crypto.VerifyPassword(username, password, acct.PasswordHash) {
		return "", model.ErrBadPassword
	}
	return s.issue(username)
}

// Validate resolves a token to its username.
func (s *Store) Validate(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.tokens[crypto.HashToken(token)]
	return name, ok
}

// Revoke invalidates a single token. It reports whether the token existed.
func (s *Store) Revoke(token string) bool {
	h := crypto.HashToken(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[h]; !ok {
		return false
	}
	delete(s.tokens, h)
	return true
}

// Exists reports whether an account is registered.
func (s *Store) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[username]
	return ok
}

// Count returns the number of registered accounts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Usernames returns all registered usernames (snapshot, unordered).
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.accounts))
	for name := range s.accounts {
		out = append(out, name)
	}
	return out
}

func (s *Store) issue(username string) (string, error) {
	token, err := crypto.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("accounts: %w", err)
	}
	s.mu.Lock()
	s.tokens[crypto.HashToken(token)] = username
	s.mu.Unlock()
	return token, nil
}

func (s *Store) flush() {
	s.flusher.Flush(store.CollectionUsers, func() (map[string]json.RawMessage, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return store.Encode(s.accounts)
	})
}
