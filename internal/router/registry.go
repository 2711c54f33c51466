package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/go-portal-shell/internal/guard"
	"github.com/FACorreiaa/go-portal-shell/internal/session"
)

// ErrUnknownModule is returned for module keys nobody registered.
var ErrUnknownModule = errors.New("router: unknown module")

// Props is what a feature module renders with.
type Props struct {
	Location guard.Location
	Params   Params
	User     *session.UserProfile
	Theme    string
	Language string
}

// Component is the single renderable entry point of a feature module.
type Component interface {
	Render(w io.Writer, props Props) error
}

// Loader fetches a module's component. It is called at most once per
// successful load.
type Loader interface {
	Load(ctx context.Context) (Component, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Component, error)

func (f LoaderFunc) Load(ctx context.Context) (Component, error) { return f(ctx) }

// LoadState is the lifecycle of a module.
type LoadState int

const (
	NotRequested LoadState = iota
	Loading
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotRequested:
		return "not_requested"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("LoadState(%d)", int(s))
}

// ModuleState is a module's state with its result.
type ModuleState struct {
	State     LoadState
	Component Component
	Err       error
}

// LoadError wraps a loader failure with the module it belongs to.
type LoadError struct {
	Module string
	Err    error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load module %q: %v", e.Module, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// Recorder receives router telemetry. app/observability/metrics implements it.
type Recorder interface {
	ModuleLoaded(ctx context.Context, module string, took time.Duration, err error)
	Navigated(ctx context.Context, kind FrameKind)
	StaleLoadDiscarded(ctx context.Context, module string)
}

type nopRecorder struct{}

func (nopRecorder) ModuleLoaded(context.Context, string, time.Duration, error) {}
func (nopRecorder) Navigated(context.Context, FrameKind)                        {}
func (nopRecorder) StaleLoadDiscarded(context.Context, string)                 {}

type module struct {
	loader Loader
	state  ModuleState
}

// Registry maps module keys to loaders and caches their results.
// A Loaded module is never loaded again; a Failed one stays failed until Reset.
type Registry struct {
	logger   *slog.Logger
	recorder Recorder
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu      sync.Mutex
	modules map[string]*module
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRecorder sets the telemetry sink.
func WithRecorder(rec Recorder) RegistryOption {
	return func(r *Registry) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// NewRegistry returns an empty registry. Loads run under a context owned by
// the registry, so a navigation ending does not cancel them; Close does.
func NewRegistry(logger *slog.Logger, opts ...RegistryOption) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		logger:   logger.With(slog.String("component", "module_registry")),
		recorder: nopRecorder{},
		tracer:   otel.Tracer("github.com/FACorreiaa/go-portal-shell/internal/router"),
		ctx:      ctx,
		cancel:   cancel,
		modules:  make(map[string]*module),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds key to l. Registering a key twice replaces a module that
// has not been requested yet and is an error otherwise.
func (r *Registry) Register(key string, l Loader) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[key]; ok && m.state.State != NotRequested {
		return fmt.Errorf("register module %q: already %s", key, m.state.State)
	}
	r.modules[key] = &module{loader: l}
	return nil
}

// Keys returns the registered module keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.modules))
	for k := range r.modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// State returns the current state of key. Unknown keys report NotRequested.
func (r *Registry) State(key string) ModuleState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[key]; ok {
		return m.state
	}
	return ModuleState{}
}

// Request starts loading key unless it is already loading or settled, and
// returns the state right after. When the returned state is Loading, done is
// called from another goroutine with the settled state.
func (r *Registry) Request(key string, done func(ModuleState)) (ModuleState, error) {
	r.mu.Lock()
	m, ok := r.modules[key]
	if !ok {
		r.mu.Unlock()
		return ModuleState{}, fmt.Errorf("%w: %q", ErrUnknownModule, key)
	}
	switch m.state.State {
	case Loaded, Failed:
		st := m.state
		r.mu.Unlock()
		return st, nil
	case NotRequested:
		m.state = ModuleState{State: Loading}
		r.logger.Debug("Module requested", slog.String("module", key))
	}
	st := m.state
	r.mu.Unlock()

	ch := r.group.DoChan(key, func() (any, error) {
		return r.load(key, m), nil
	})
	go func() {
		res := <-ch
		if done != nil {
			done(res.Val.(ModuleState))
		}
	}()
	return st, nil
}

// Load requests key and waits until it settles or ctx ends.
func (r *Registry) Load(ctx context.Context, key string) (Component, error) {
	settled := make(chan ModuleState, 1)
	st, err := r.Request(key, func(s ModuleState) { settled <- s })
	if err != nil {
		return nil, err
	}
	if st.State == Loading {
		select {
		case st = <-settled:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if st.State == Failed {
		return nil, st.Err
	}
	return st.Component, nil
}

// Preload loads several modules concurrently and returns the first failure.
func (r *Registry) Preload(ctx context.Context, keys ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			_, err := r.Load(ctx, key)
			return err
		})
	}
	return g.Wait()
}

// Reset moves a Failed module back to NotRequested so the next request
// loads it again. It reports whether the module was reset.
func (r *Registry) Reset(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[key]
	if !ok || m.state.State != Failed {
		return false
	}
	m.state = ModuleState{}
	// a finished flight may still be registered; don't let the retry join it
	r.group.Forget(key)
	r.logger.Info("Module reset for retry", slog.String("module", key))
	return true
}

// Close cancels in-flight loads.
func (r *Registry) Close() { r.cancel() }

// load runs inside the singleflight call for key.
func (r *Registry) load(key string, m *module) ModuleState {
	r.mu.Lock()
	if s := m.state.State; s == Loaded || s == Failed {
		st := m.state
		r.mu.Unlock()
		return st
	}
	r.mu.Unlock()

	ctx, span := r.tracer.Start(r.ctx, "module.load", trace.WithAttributes(attribute.String("module", key)))
	defer span.End()

	start := time.Now()
	c, err := m.loader.Load(ctx)
	if err == nil && c == nil {
		err = errors.New("loader returned no component")
	}
	took := time.Since(start)
	r.recorder.ModuleLoaded(ctx, key, took, err)

	var st ModuleState
	if err != nil {
		st = ModuleState{State: Failed, Err: &LoadError{Module: key, Err: err}}
		span.RecordError(err)
		span.SetStatus(codes.Error, "module load failed")
		r.logger.ErrorContext(ctx, "Module load failed", slog.String("module", key),
			slog.Duration("took", took), slog.Any("error", err))
	} else {
		st = ModuleState{State: Loaded, Component: c}
		r.logger.InfoContext(ctx, "Module loaded", slog.String("module", key), slog.Duration("took", took))
	}

	r.mu.Lock()
	m.state = st
	r.mu.Unlock()
	return st
}
