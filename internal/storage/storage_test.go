package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseMedium(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "theme")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "theme", "dark"))
	v, err := s.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	require.NoError(t, s.Set(ctx, "theme", "light"))
	v, err = s.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	require.NoError(t, s.Remove(ctx, "theme"))
	_, err = s.Get(ctx, "theme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseMedium(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseMedium(t, s)
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var s Unavailable
	_, err := s.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, "session", "{}"), ErrUnavailable)
	assert.ErrorIs(t, s.Remove(ctx, "session"), ErrUnavailable)
}

func TestPostgres(t *testing.T) {
	ctx := context.Background()

	t.Run("Get", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT value FROM client_storage").
			WithArgs("kiosk", "language").
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("en"))

		v, err := NewPostgres(mock, "kiosk").Get(ctx, "language")
		require.NoError(t, err)
		assert.Equal(t, "en", v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetMissing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT value FROM client_storage").
			WithArgs("default", "session").
			WillReturnError(pgx.ErrNoRows)

		_, err = NewPostgres(mock, "").Get(ctx, "session")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SetAndRemove", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO client_storage").
			WithArgs("default", "theme", "dark").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("DELETE FROM client_storage").
			WithArgs("default", "theme").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		p := NewPostgres(mock, "default")
		require.NoError(t, p.Set(ctx, "theme", "dark"))
		require.NoError(t, p.Remove(ctx, "theme"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SetError", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		dbErr := errors.New("connection reset")
		mock.ExpectExec("INSERT INTO client_storage").
			WithArgs("default", "theme", "dark").
			WillReturnError(dbErr)

		err = NewPostgres(mock, "default").Set(ctx, "theme", "dark")
		assert.ErrorIs(t, err, dbErr)
	})
}

// recordingStorage counts Set calls per key.
type recordingStorage struct {
	*Memory
	mu   sync.Mutex
	sets map[string]int
	fail error
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{Memory: NewMemory(), sets: make(map[string]int)}
}

func (r *recordingStorage) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	r.sets[key]++
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	return r.Memory.Set(ctx, key, value)
}

func TestWriter(t *testing.T) {
	logger := slog.Default()

	t.Run("LastWriteWins", func(t *testing.T) {
		store := newRecordingStorage()
		w := NewWriter(store, logger)
		defer w.Close()

		for _, v := range []string{"light", "dark", "light", "dark"} {
			w.Put("theme", v)
		}
		require.NoError(t, w.Flush(context.Background()))

		v, err := store.Get(context.Background(), "theme")
		require.NoError(t, err)
		assert.Equal(t, "dark", v)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newRecordingStorage()
		w := NewWriter(store, logger)
		defer w.Close()

		w.Put("session", `{"token":"t"}`)
		w.Delete("session")
		require.NoError(t, w.Flush(context.Background()))

		_, err := store.Get(context.Background(), "session")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CloseDrainsPending", func(t *testing.T) {
		store := newRecordingStorage()
		w := NewWriter(store, logger)
		w.Put("language", "en")
		require.NoError(t, w.Close())

		v, err := store.Get(context.Background(), "language")
		require.NoError(t, err)
		assert.Equal(t, "en", v)

		// writes after close are dropped
		w.Put("language", "pt")
		v, _ = store.Get(context.Background(), "language")
		assert.Equal(t, "en", v)
		assert.NoError(t, w.Flush(context.Background()))
	})

	t.Run("UnavailableIsSilent", func(t *testing.T) {
		var hooked int
		w := NewWriter(Unavailable{}, logger, WithErrorHook(func(string, error) { hooked++ }))
		w.Put("theme", "dark")
		require.NoError(t, w.Close())
		assert.Zero(t, hooked)
	})

	t.Run("ErrorHook", func(t *testing.T) {
		store := newRecordingStorage()
		store.fail = errors.New("disk full")

		var mu sync.Mutex
		var keys []string
		w := NewWriter(store, logger,
			WithWriteTimeout(time.Second),
			WithErrorHook(func(key string, err error) {
				mu.Lock()
				defer mu.Unlock()
				keys = append(keys, key)
			}))
		w.Put("theme", "dark")
		require.NoError(t, w.Close())

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"theme"}, keys)
	})
}

func TestWriterRead(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Set(ctx, "theme", "light"))

	w := NewWriter(store, slog.Default())
	defer w.Close()

	v, err := w.Read(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	w.Put("theme", "dark")
	v, err = w.Read(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	w.Delete("theme")
	_, err = w.Read(ctx, "theme")
	assert.ErrorIs(t, err, ErrNotFound)
}
