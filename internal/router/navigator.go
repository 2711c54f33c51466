// Package router maps paths to feature modules, loads module code lazily and
// decides, per navigation, between a redirect, a loading placeholder, the
// loaded view or a load failure.
package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-portal-shell/internal/guard"
)

// ErrSuperseded is returned by AwaitSettled when another navigation replaced
// the awaited one before it settled.
var ErrSuperseded = errors.New("router: navigation superseded")

// FrameKind is what a navigation renders.
type FrameKind int

const (
	FrameRedirect FrameKind = iota
	FramePlaceholder
	FrameView
	FrameFailure
)

func (k FrameKind) String() string {
	switch k {
	case FrameRedirect:
		return "redirect"
	case FramePlaceholder:
		return "placeholder"
	case FrameView:
		return "view"
	case FrameFailure:
		return "failure"
	}
	return "unknown"
}

// Frame is the render result of one navigation.
type Frame struct {
	Seq       uint64
	ID        string
	Kind      FrameKind
	Location  guard.Location
	Route     *Route
	Params    Params
	Redirect  *guard.Redirect
	Component Component
	Err       error
}

// Session is the part of the session store the router reads.
type Session interface {
	IsAuthenticated() bool
}

type navigation struct {
	seq     uint64
	id      string
	loc     guard.Location
	frame   Frame
	done    bool
	settled chan struct{}
	once    sync.Once
}

func (n *navigation) settle() { n.once.Do(func() { close(n.settled) }) }

// Navigator resolves navigations. Only the latest navigation may render; a
// module load finishing for an older one is discarded.
type Navigator struct {
	table    *Table
	registry *Registry
	session  Session
	guard    *guard.Guard
	logger   *slog.Logger
	recorder Recorder

	mu     sync.Mutex
	seq    uint64
	cur    *navigation
	nextID int
	subs   map[int]func(Frame)
}

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithNavigationRecorder sets the telemetry sink.
func WithNavigationRecorder(rec Recorder) NavigatorOption {
	return func(n *Navigator) {
		if rec != nil {
			n.recorder = rec
		}
	}
}

// NewNavigator wires the route table, module registry, session and guard.
func NewNavigator(table *Table, registry *Registry, sess Session, g *guard.Guard, logger *slog.Logger, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		table:    table,
		registry: registry,
		session:  sess,
		guard:    g,
		logger:   logger.With(slog.String("component", "navigator")),
		recorder: nopRecorder{},
		subs:     make(map[int]func(Frame)),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Navigate makes loc the current navigation and returns its frame. A
// placeholder frame is followed, once the module settles, by a new frame
// delivered to OnFrame observers, unless another navigation happened first.
func (n *Navigator) Navigate(ctx context.Context, loc guard.Location) Frame {
	return n.frameOf(n.navigate(ctx, loc))
}

// AwaitSettled navigates to loc and waits until its frame is no longer a
// placeholder. On ctx expiry it returns the placeholder with ctx's error; if
// a newer navigation replaces this one it returns ErrSuperseded.
func (n *Navigator) AwaitSettled(ctx context.Context, loc guard.Location) (Frame, error) {
	nav := n.navigate(ctx, loc)
	select {
	case <-nav.settled:
	case <-ctx.Done():
		return n.frameOf(nav), ctx.Err()
	}
	n.mu.Lock()
	f, done := nav.frame, nav.done
	n.mu.Unlock()
	if !done {
		return f, ErrSuperseded
	}
	return f, nil
}

// Current returns the frame of the latest navigation.
func (n *Navigator) Current() (Frame, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cur == nil {
		return Frame{}, false
	}
	return n.cur.frame, true
}

// OnFrame registers fn to receive every frame committed for the current
// navigation. The returned func removes it.
func (n *Navigator) OnFrame(fn func(Frame)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Navigator) frameOf(nav *navigation) Frame {
	n.mu.Lock()
	defer n.mu.Unlock()
	return nav.frame
}

func (n *Navigator) navigate(ctx context.Context, loc guard.Location) *navigation {
	n.mu.Lock()
	n.seq++
	nav := &navigation{seq: n.seq, id: uuid.NewString(), loc: loc, settled: make(chan struct{})}
	nav.frame = Frame{Seq: nav.seq, ID: nav.id, Kind: FramePlaceholder, Location: loc}
	prev := n.cur
	n.cur = nav
	n.mu.Unlock()

	if prev != nil {
		prev.settle()
	}
	n.logger.DebugContext(ctx, "Navigation started",
		slog.String("navigation_id", nav.id), slog.String("location", loc.String()))

	f := n.resolve(nav)
	if n.commit(nav, f) {
		n.recorder.Navigated(ctx, f.Kind)
	}
	return nav
}

// commit stores f as nav's frame if nav is still current and f does not step
// back from a settled frame to a placeholder.
func (n *Navigator) commit(nav *navigation, f Frame) bool {
	n.mu.Lock()
	if n.cur != nav || (nav.done && f.Kind == FramePlaceholder) {
		n.mu.Unlock()
		return false
	}
	nav.frame = f
	if f.Kind != FramePlaceholder {
		nav.done = true
	}
	subs := make([]func(Frame), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	if f.Kind != FramePlaceholder {
		nav.settle()
	}
	for _, fn := range subs {
		fn(f)
	}
	return true
}

func (n *Navigator) resolve(nav *navigation) Frame {
	f := Frame{Seq: nav.seq, ID: nav.id, Location: nav.loc}

	route, params, ok := n.table.Match(nav.loc.Path)
	if !ok {
		to := guard.LoginPath
		if n.session.IsAuthenticated() {
			to = HomePath
		}
		f.Kind = FrameRedirect
		f.Redirect = &guard.Redirect{To: to}
		return f
	}
	f.Route = &route
	f.Params = params

	switch route.Kind {
	case Public:
		if n.session.IsAuthenticated() {
			f.Kind = FrameRedirect
			f.Redirect = &guard.Redirect{To: HomePath}
			return f
		}
	case Protected:
		if d := n.guard.Check(nav.loc); d.State == guard.Denied {
			f.Kind = FrameRedirect
			f.Redirect = d.Redirect
			return f
		}
	}

	st, err := n.registry.Request(route.Module, func(ModuleState) { n.reload(nav, route.Module) })
	if err != nil {
		f.Kind = FrameFailure
		f.Err = err
		return f
	}
	switch st.State {
	case Loaded:
		f.Kind = FrameView
		f.Component = st.Component
	case Failed:
		f.Kind = FrameFailure
		f.Err = st.Err
	default:
		f.Kind = FramePlaceholder
	}
	return f
}

// reload re-renders nav after its module settled, unless nav is stale.
func (n *Navigator) reload(nav *navigation, module string) {
	n.mu.Lock()
	current := n.cur == nav
	n.mu.Unlock()
	if !current {
		n.logger.Debug("Discarding module load for inactive navigation",
			slog.String("navigation_id", nav.id), slog.String("module", module))
		n.recorder.StaleLoadDiscarded(context.Background(), module)
		return
	}
	f := n.resolve(nav)
	if n.commit(nav, f) {
		n.recorder.Navigated(context.Background(), f.Kind)
	}
}
