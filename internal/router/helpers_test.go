package router

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

type textComponent string

func (c textComponent) Render(w io.Writer, props Props) error {
	_, err := fmt.Fprintf(w, "%s %s", string(c), props.Location.Path)
	return err
}

// countingLoader counts calls and optionally blocks until released.
type countingLoader struct {
	calls   atomic.Int32
	comp    Component
	err     error
	release chan struct{}
}

func newCountingLoader(name string) *countingLoader {
	return &countingLoader{comp: textComponent(name)}
}

func (l *countingLoader) blocking() *countingLoader {
	l.release = make(chan struct{})
	return l
}

func (l *countingLoader) Load(ctx context.Context) (Component, error) {
	l.calls.Add(1)
	if l.release != nil {
		select {
		case <-l.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.comp, nil
}

type fakeSession struct{ authenticated atomic.Bool }

func (f *fakeSession) IsAuthenticated() bool { return f.authenticated.Load() }

type fakeRecorder struct {
	mu     sync.Mutex
	loads  map[string]int
	stale  map[string]int
	frames map[FrameKind]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{loads: map[string]int{}, stale: map[string]int{}, frames: map[FrameKind]int{}}
}

func (r *fakeRecorder) ModuleLoaded(_ context.Context, module string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads[module]++
}

func (r *fakeRecorder) Navigated(_ context.Context, kind FrameKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[kind]++
}

func (r *fakeRecorder) StaleLoadDiscarded(_ context.Context, module string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale[module]++
}

func (r *fakeRecorder) staleCount(module string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale[module]
}
