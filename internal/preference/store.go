// Package preference holds the persisted scalar UI settings: theme and language.
package preference

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/FACorreiaa/go-portal-shell/internal/storage"
)

// Spec describes one persisted scalar.
type Spec[T ~string] struct {
	Key      string
	Parse    func(raw string) (T, bool)
	Fallback func() T
	Toggle   func(T) T
}

// Store is a persisted enumerated value with observers.
type Store[T ~string] struct {
	spec   Spec[T]
	writer *storage.Writer
	logger *slog.Logger

	mu       sync.RWMutex
	value    T
	explicit bool
	nextID   int
	subs     map[int]func(T)

	// notifyMu keeps observer delivery in update order.
	notifyMu sync.Mutex
}

// NewStore returns a store reporting the fallback value until a value is
// loaded or set.
func NewStore[T ~string](spec Spec[T], writer *storage.Writer, logger *slog.Logger) *Store[T] {
	return &Store[T]{
		spec:   spec,
		writer: writer,
		logger: logger.With(slog.String("store", spec.Key)),
		subs:   make(map[int]func(T)),
	}
}

// Initialize loads the persisted value. Missing, unreadable or unknown values
// leave the store on its fallback, which is re-evaluated on every read until
// a value is set.
func (s *Store[T]) Initialize(ctx context.Context) {
	var (
		v        T
		explicit bool
	)
	raw, err := s.writer.Read(ctx, s.spec.Key)
	switch {
	case err == nil:
		if parsed, ok := s.spec.Parse(raw); ok {
			v, explicit = parsed, true
		} else {
			s.logger.WarnContext(ctx, "Ignoring unknown persisted value", slog.String("value", raw))
		}
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrUnavailable):
	default:
		s.logger.WarnContext(ctx, "Failed to read persisted value", slog.Any("error", err))
	}
	s.mu.Lock()
	s.value, s.explicit = v, explicit
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "Preference initialized",
		slog.String("value", string(s.Get())), slog.Bool("persisted", explicit))
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current()
}

// Persisted reports whether the value was loaded or set rather than derived
// from the fallback.
func (s *Store[T]) Persisted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.explicit
}

func (s *Store[T]) current() T {
	if s.explicit {
		return s.value
	}
	return s.spec.Fallback()
}

// Set replaces the value, persists it and notifies observers.
// The raw value is parsed, so aliases accepted by Parse are valid here too.
func (s *Store[T]) Set(raw string) (T, error) {
	v, ok := s.spec.Parse(raw)
	if !ok {
		return s.Get(), &InvalidValueError{Key: s.spec.Key, Value: raw}
	}
	s.update(func(T) T { return v })
	return v, nil
}

// Toggle flips to the other value and returns it.
func (s *Store[T]) Toggle() T {
	return s.update(s.spec.Toggle)
}

// Subscribe registers fn to receive every new value. The returned func removes it.
func (s *Store[T]) Subscribe(fn func(T)) func() {
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

// update persists under mu so queued writes follow update order. Observers
// must not call Set or Toggle synchronously.
func (s *Store[T]) update(next func(T) T) T {
	s.mu.Lock()
	v := next(s.current())
	s.value, s.explicit = v, true
	s.save(v)
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.notifyMu.Lock()
	s.mu.Unlock()

	defer s.notifyMu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
	return v
}

func (s *Store[T]) save(v T) {
	s.writer.Put(s.spec.Key, string(v))
}

// InvalidValueError reports a value outside the store's enumeration.
type InvalidValueError struct {
	Key   string
	Value string
}

func (e *InvalidValueError) Error() string {
	return "preference " + e.Key + ": invalid value " + `"` + e.Value + `"`
}
