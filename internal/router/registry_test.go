package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLoadOnce(t *testing.T) {
	reg := NewRegistry(slog.Default())
	defer reg.Close()

	loader := newCountingLoader("cursos").blocking()
	require.NoError(t, reg.Register(ModuleCourses, loader))
	assert.Equal(t, NotRequested, reg.State(ModuleCourses).State)

	var wg sync.WaitGroup
	results := make([]Component, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := reg.Load(context.Background(), ModuleCourses)
			assert.NoError(t, err)
			results[i] = c
		}()
	}

	require.Eventually(t, func() bool { return reg.State(ModuleCourses).State == Loading },
		time.Second, 5*time.Millisecond)
	close(loader.release)
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
	for _, c := range results {
		assert.Equal(t, textComponent("cursos"), c)
	}

	st, err := reg.Request(ModuleCourses, func(ModuleState) { t.Error("done must not be called for a loaded module") })
	require.NoError(t, err)
	assert.Equal(t, Loaded, st.State)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestRegistryFailure(t *testing.T) {
	reg := NewRegistry(slog.Default())
	defer reg.Close()

	netErr := errors.New("chunk fetch failed")
	loader := newCountingLoader("financeiro")
	loader.err = netErr
	require.NoError(t, reg.Register(ModuleFinance, loader))

	_, err := reg.Load(context.Background(), ModuleFinance)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ModuleFinance, loadErr.Module)
	assert.ErrorIs(t, err, netErr)

	// no automatic retry
	_, err = reg.Load(context.Background(), ModuleFinance)
	assert.ErrorIs(t, err, netErr)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, Failed, reg.State(ModuleFinance).State)

	// explicit retry
	loader.err = nil
	assert.True(t, reg.Reset(ModuleFinance))
	c, err := reg.Load(context.Background(), ModuleFinance)
	require.NoError(t, err)
	assert.Equal(t, textComponent("financeiro"), c)
	assert.Equal(t, int32(2), loader.calls.Load())
	assert.False(t, reg.Reset(ModuleFinance))
}

func TestRegistryNilComponentIsFailure(t *testing.T) {
	reg := NewRegistry(slog.Default())
	defer reg.Close()
	require.NoError(t, reg.Register("empty", LoaderFunc(func(context.Context) (Component, error) { return nil, nil })))

	_, err := reg.Load(context.Background(), "empty")
	assert.Error(t, err)
	assert.Equal(t, Failed, reg.State("empty").State)
}

func TestRegistryUnknownModule(t *testing.T) {
	reg := NewRegistry(slog.Default())
	defer reg.Close()

	_, err := reg.Request("missing", nil)
	assert.ErrorIs(t, err, ErrUnknownModule)
	_, err = reg.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestRegistryRegisterAfterRequest(t *testing.T) {
	reg := NewRegistry(slog.Default())
	defer reg.Close()

	require.NoError(t, reg.Register(ModuleEvents, newCountingLoader("eventos")))
	require.NoError(t, reg.Register(ModuleEvents, newCountingLoader("eventos v2")))
	_, err := reg.Load(context.Background(), ModuleEvents)
	require.NoError(t, err)
	assert.Error(t, reg.Register(ModuleEvents, newCountingLoader("eventos v3")))
	assert.Equal(t, []string{ModuleEvents}, reg.Keys())
}

func TestRegistryPreload(t *testing.T) {
	rec := newFakeRecorder()
	reg := NewRegistry(slog.Default(), WithRecorder(rec))
	defer reg.Close()

	a, b := newCountingLoader("a"), newCountingLoader("b")
	require.NoError(t, reg.Register("a", a))
	require.NoError(t, reg.Register("b", b))

	require.NoError(t, reg.Preload(context.Background(), "a", "b"))
	assert.Equal(t, Loaded, reg.State("a").State)
	assert.Equal(t, Loaded, reg.State("b").State)
	assert.Equal(t, 1, rec.loads["a"])
	assert.Equal(t, 1, rec.loads["b"])

	bad := newCountingLoader("c")
	bad.err = errors.New("boom")
	require.NoError(t, reg.Register("c", bad))
	assert.Error(t, reg.Preload(context.Background(), "a", "c"))
}

func TestRegistryLoadContext(t *testing.T) {
	reg := NewRegistry(slog.Default())
	defer reg.Close()

	loader := newCountingLoader("lento").blocking()
	require.NoError(t, reg.Register("slow", loader))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := reg.Load(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the load itself keeps going
	assert.Equal(t, Loading, reg.State("slow").State)
	close(loader.release)
	require.Eventually(t, func() bool { return reg.State("slow").State == Loaded },
		time.Second, 5*time.Millisecond)
}
