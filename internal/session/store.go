// Package session holds the persisted authentication state of the shell: the
// token and the profile of the signed-in principal.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/FACorreiaa/go-portal-shell/internal/storage"
)

// Key is the storage key of the persisted session.
const Key = "session"

// Store is the single writer of the session state. Reads return copies.
type Store struct {
	writer *storage.Writer
	logger *slog.Logger

	mu     sync.RWMutex
	state  State
	nextID int
	subs   map[int]func(State)

	// notifyMu keeps observer delivery in mutation order.
	notifyMu sync.Mutex
}

// New returns an empty store. Call Initialize to load the persisted session.
func New(writer *storage.Writer, logger *slog.Logger) *Store {
	return &Store{
		writer: writer,
		logger: logger.With(slog.String("store", Key)),
		subs:   make(map[int]func(State)),
	}
}

// Initialize loads the persisted session. A missing or malformed value yields
// the empty session; the failure is logged and never returned.
func (s *Store) Initialize(ctx context.Context) {
	var st State
	raw, err := s.writer.Read(ctx, Key)
	switch {
	case err == nil:
		decoded, decErr := decode(raw)
		if decErr != nil {
			s.logger.WarnContext(ctx, "Discarding malformed persisted session", slog.Any("error", decErr))
		} else {
			st = decoded
		}
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrUnavailable):
	default:
		s.logger.WarnContext(ctx, "Failed to read persisted session", slog.Any("error", err))
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Session initialized", slog.Bool("authenticated", st.IsAuthenticated()))
}

// ErrEmptyToken is returned by Login when the token is blank.
var ErrEmptyToken = errors.New("session: empty token")

// Login replaces the whole session. A blank token leaves the state untouched.
func (s *Store) Login(token string, user UserProfile) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	u := user.clone()
	s.mutate(func(State) State {
		return State{Token: &token, User: &u}
	})
	attrs := []any{slog.String("username", user.Username)}
	if exp, ok := TokenExpiry(token); ok {
		attrs = append(attrs, slog.Time("token_expires_at", exp))
	}
	s.logger.Info("Session started", attrs...)
	return nil
}

// Logout clears token and user together.
func (s *Store) Logout() {
	s.mutate(func(State) State { return State{} })
	s.logger.Info("Session cleared")
}

// UpdateUser replaces the profile and leaves the token untouched. Without a
// token the profile is recorded but the session stays unauthenticated, and
// the persisted half session is discarded on the next Initialize.
func (s *Store) UpdateUser(user UserProfile) {
	u := user.clone()
	st := s.mutate(func(cur State) State {
		return State{Token: cur.Token, User: &u}
	})
	s.logger.Debug("Session user updated",
		slog.String("username", user.Username),
		slog.Bool("authenticated", st.IsAuthenticated()))
}

// IsAuthenticated is derived from the current state on every call.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Token returns the current token, if any.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Token == nil {
		return "", false
	}
	return *s.state.Token, true
}

// User returns a copy of the current profile, if any.
func (s *Store) User() (UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return UserProfile{}, false
	}
	return s.state.User.clone(), true
}

// Subscribe registers fn to receive a snapshot after every mutation.
// The returned func removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close flushes pending session writes.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// mutate applies next and schedules its write under mu, so the last queued
// write always matches the in-memory state. Subscribers run after mu is
// released and must not mutate the store synchronously.
func (s *Store) mutate(next func(State) State) State {
	s.mu.Lock()
	s.state = next(s.state)
	st := s.state.clone()
	s.save(st)
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()

	defer s.notifyMu.Unlock()
	for _, fn := range subs {
		fn(st.clone())
	}
	return st
}

// save schedules a write of the full state. Failures stay inside the writer.
func (s *Store) save(st State) {
	raw, err := encode(st)
	if err != nil {
		s.logger.Error("Failed to encode session", slog.Any("error", err))
		return
	}
	s.writer.Put(Key, raw)
}
