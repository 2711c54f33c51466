package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-portal-shell/internal/storage"
)

func ptr[T any](v T) *T { return &v }

func newStore(t *testing.T, st storage.Storage) (*Store, *storage.Writer) {
	t.Helper()
	w := storage.NewWriter(st, slog.Default())
	t.Cleanup(func() { w.Close() })
	s := New(w, slog.Default())
	s.Initialize(context.Background())
	return s, w
}

func ana() UserProfile {
	return UserProfile{
		Username: "ana",
		Email:    "ana@example.com",
		Name:     ptr("Ana Souza"),
		Timezone: "America/Sao_Paulo",
		ProfileImage: &ProfileImage{
			Data:      "iVBORw0KGgo=",
			MediaType: "image/png",
		},
		Roles: []string{"STUDENT"},
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	states := []State{
		{},
		{Token: ptr("tok1"), User: ptr(ana())},
		{Token: ptr("tok2"), User: &UserProfile{
			Username:     "bruno",
			Email:        "bruno@example.com",
			Phone:        "+55 11 99999-0000",
			Bio:          "Professor de xadrez",
			ProfileImage: &ProfileImage{URL: "https://cdn.example.com/bruno.jpg"},
			Roles:        []string{"TEACHER", "INSTRUCTOR"},
		}},
	}
	for _, want := range states {
		mem := storage.NewMemory()
		s, w := newStore(t, mem)
		if want.IsAuthenticated() {
			s.Login(*want.Token, *want.User)
		} else {
			s.Logout()
		}
		require.NoError(t, w.Flush(ctx))

		reloaded, _ := newStore(t, mem)
		assert.Equal(t, want, reloaded.Snapshot())
	}
}

func TestCorruptionTolerance(t *testing.T) {
	ctx := context.Background()
	corrupt := []string{
		"",
		"not json",
		"{",
		"[]",
		"42",
		`{"token": 12, "user": null}`,
		`{"token": "tok", "user": "ana"}`,
		`{"token": "tok", "user": null}`,
		`{"token": null, "user": {"username": "ana"}}`,
		`{"token": "", "user": {"username": "ana"}}`,
		`{"token": "tok", "user": {"roles": "ADMIN"}}`,
	}
	for _, raw := range corrupt {
		mem := storage.NewMemory()
		require.NoError(t, mem.Set(ctx, Key, raw))

		s, _ := newStore(t, mem)
		assert.Equal(t, State{}, s.Snapshot(), raw)
		assert.False(t, s.IsAuthenticated(), raw)
	}
}

func TestDualFieldInvariant(t *testing.T) {
	s, _ := newStore(t, storage.NewMemory())

	require.NoError(t, s.Login("t", ana()))
	tok, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "t", tok)
	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, ana(), u)
	assert.True(t, s.IsAuthenticated())

	edited := ana()
	edited.Bio = "Aluna de violão"
	s.UpdateUser(edited)
	tok, _ = s.Token()
	assert.Equal(t, "t", tok)
	u, _ = s.User()
	assert.Equal(t, "Aluna de violão", u.Bio)
	assert.True(t, s.IsAuthenticated())

	s.Logout()
	_, hasToken := s.Token()
	_, hasUser := s.User()
	assert.False(t, hasToken)
	assert.False(t, hasUser)
	assert.False(t, s.IsAuthenticated())
}

func TestUpdateUserWithoutToken(t *testing.T) {
	s, _ := newStore(t, storage.NewMemory())
	s.UpdateUser(ana())

	_, hasToken := s.Token()
	assert.False(t, hasToken)
	_, hasUser := s.User()
	assert.True(t, hasUser)
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.Login("late", ana()))
	assert.True(t, s.IsAuthenticated())
}

func TestProfileWithoutTokenNotRestored(t *testing.T) {
	mem := storage.NewMemory()
	s, w := newStore(t, mem)
	s.UpdateUser(ana())
	require.NoError(t, w.Flush(context.Background()))

	reloaded, _ := newStore(t, mem)
	assert.Equal(t, State{}, reloaded.Snapshot())
}

func TestLoginRejectsBlankToken(t *testing.T) {
	mem := storage.NewMemory()
	s, w := newStore(t, mem)
	require.NoError(t, s.Login("t", ana()))

	for _, tok := range []string{"", "   ", "\t\n"} {
		assert.ErrorIs(t, s.Login(tok, UserProfile{Username: "outro"}), ErrEmptyToken)
	}
	tok, _ := s.Token()
	assert.Equal(t, "t", tok)
	u, _ := s.User()
	assert.Equal(t, "ana", u.Username)

	require.NoError(t, w.Flush(context.Background()))
	reloaded, _ := newStore(t, mem)
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestConcurrentMutationsPersistLastState(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		mem := storage.NewMemory()
		s, w := newStore(t, mem)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					if (i+j)%2 == 0 {
						u := ana()
						u.Username = fmt.Sprintf("user-%d-%d", i, j)
						assert.NoError(t, s.Login(fmt.Sprintf("tok-%d-%d", i, j), u))
					} else {
						s.Logout()
					}
				}
			}(i)
		}
		wg.Wait()
		require.NoError(t, w.Flush(ctx))

		reloaded, _ := newStore(t, mem)
		require.Equal(t, s.Snapshot(), reloaded.Snapshot(), "round %d", round)
	}
}

func TestSubscribersSeeMutationOrder(t *testing.T) {
	s, _ := newStore(t, storage.NewMemory())
	var (
		mu   sync.Mutex
		last State
	)
	unsubscribe := s.Subscribe(func(st State) {
		mu.Lock()
		last = st
		mu.Unlock()
	})
	defer unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if j%2 == 0 {
					assert.NoError(t, s.Login(fmt.Sprintf("tok-%d-%d", i, j), ana()))
				} else {
					s.Logout()
				}
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, s.Snapshot(), last)
}

func TestDerivedFlag(t *testing.T) {
	cases := []struct {
		name  string
		state State
		want  bool
	}{
		{"Empty", State{}, false},
		{"TokenOnly", State{Token: ptr("t")}, false},
		{"UserOnly", State{User: ptr(ana())}, false},
		{"EmptyToken", State{Token: ptr(""), User: ptr(ana())}, false},
		{"Both", State{Token: ptr("t"), User: ptr(ana())}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.state.IsAuthenticated())
		})
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s, _ := newStore(t, storage.NewMemory())
	s.Login("t", ana())

	snap := s.Snapshot()
	snap.User.Roles[0] = "ADMIN"
	*snap.User.Name = "someone else"

	u, _ := s.User()
	assert.Equal(t, []string{"STUDENT"}, u.Roles)
	assert.Equal(t, "Ana Souza", u.DisplayName())
}

func TestSubscribe(t *testing.T) {
	s, _ := newStore(t, storage.NewMemory())

	var seen []bool
	unsubscribe := s.Subscribe(func(st State) { seen = append(seen, st.IsAuthenticated()) })
	s.Login("t", ana())
	s.Logout()
	unsubscribe()
	s.Login("t", ana())

	assert.Equal(t, []bool{true, false}, seen)
}

func TestUnavailableStorage(t *testing.T) {
	s, w := newStore(t, storage.Unavailable{})
	require.NoError(t, s.Login("t", ana()))
	require.NoError(t, w.Flush(context.Background()))
	assert.True(t, s.IsAuthenticated())
}

func TestLogoutPersistsEmptyState(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	s, w := newStore(t, mem)
	s.Login("t", ana())
	s.Logout()
	require.NoError(t, w.Flush(ctx))

	raw, err := mem.Get(ctx, Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":null,"user":null}`, raw)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ana",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("unrelated-key"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
}

func TestHasRole(t *testing.T) {
	u := UserProfile{Roles: []string{"STUDENT", "TEACHER"}}
	assert.True(t, u.HasRole("TEACHER"))
	assert.False(t, u.HasRole("ADMIN"))
	assert.False(t, UserProfile{}.HasRole("STUDENT"))
}
