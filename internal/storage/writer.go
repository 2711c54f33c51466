package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const defaultWriteTimeout = 5 * time.Second

// write is a pending operation for one key. A nil value removes the key.
type write struct {
	value *string
}

// Writer applies writes to a Storage off the caller's path. Pending writes are
// coalesced per key, so the last write issued for a key is the one stored.
type Writer struct {
	store   Storage
	logger  *slog.Logger
	timeout time.Duration
	onError func(key string, err error)

	mu       sync.Mutex
	pending  map[string]write
	inflight map[string]write
	closed   bool

	wake  chan struct{}
	flush chan chan struct{}
	quit  chan struct{}
	done  chan struct{}
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithErrorHook registers fn to be called for every failed write other than ErrUnavailable.
func WithErrorHook(fn func(key string, err error)) WriterOption {
	return func(w *Writer) { w.onError = fn }
}

// WithWriteTimeout bounds each individual write.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// NewWriter starts the background loop for store. Close stops it.
func NewWriter(store Storage, logger *slog.Logger, opts ...WriterOption) *Writer {
	w := &Writer{
		store:   store,
		logger:  logger.With(slog.String("component", "storage_writer")),
		timeout: defaultWriteTimeout,
		pending: make(map[string]write),
		wake:    make(chan struct{}, 1),
		flush:   make(chan chan struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.loop()
	return w
}

// Put schedules value to be stored under key.
func (w *Writer) Put(key, value string) {
	w.schedule(key, write{value: &value})
}

// Delete schedules key to be removed.
func (w *Writer) Delete(key string) {
	w.schedule(key, write{})
}

func (w *Writer) schedule(key string, op write) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Debug("Write dropped after close", slog.String("key", key))
		return
	}
	w.pending[key] = op
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every write scheduled before the call has been applied or ctx ends.
func (w *Writer) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case w.flush <- reply:
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close applies pending writes and stops the loop.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done
	return nil
}

func (w *Writer) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case reply := <-w.flush:
			w.drain()
			close(reply)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]write)
	w.inflight = batch
	w.mu.Unlock()

	for key, op := range batch {
		w.apply(key, op)
	}

	w.mu.Lock()
	w.inflight = nil
	w.mu.Unlock()
}

func (w *Writer) apply(key string, op write) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	if op.value == nil {
		err = w.store.Remove(ctx, key)
	} else {
		err = w.store.Set(ctx, key, *op.value)
	}
	switch {
	case err == nil:
		w.logger.Debug("Persisted key", slog.String("key", key), slog.Bool("removed", op.value == nil))
	case errors.Is(err, ErrUnavailable):
		w.logger.Debug("Storage unavailable, keeping state in memory", slog.String("key", key))
	default:
		w.logger.Warn("Failed to persist key", slog.String("key", key), slog.Any("error", err))
		if w.onError != nil {
			w.onError(key, err)
		}
	}
}

// Read returns the value key will hold once pending writes are applied,
// falling back to the underlying storage.
func (w *Writer) Read(ctx context.Context, key string) (string, error) {
	w.mu.Lock()
	op, ok := w.pending[key]
	if !ok {
		op, ok = w.inflight[key]
	}
	w.mu.Unlock()
	if ok {
		if op.value == nil {
			return "", ErrNotFound
		}
		return *op.value, nil
	}
	return w.store.Get(ctx, key)
}
