package routing

import (
	"context"
	"sync/atomic"
	"time"

	"transit-planner/internal/transit"
)

// Engine owns the current graph. Build publishes a complete graph with a
// single atomic store, so searches already running keep the snapshot they
// started with.
type Engine struct {
	opts  Options
	graph atomic.Pointer[Graph]
	now   func() time.Time
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults(), now: time.Now}
}

// SetClock overrides the departure time source. Intended for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Build replaces the current graph with one built from stops and routes.
func (e *Engine) Build(stops []transit.Stop, routes []transit.Route) *Graph {
	g := BuildGraph(stops, routes, e.opts)
	e.graph.Store(g)
	return g
}

func (e *Engine) Ready() bool { return e.graph.Load() != nil }

// Graph returns the published graph, or nil before the first Build.
func (e *Engine) Graph() *Graph { return e.graph.Load() }

func (e *Engine) Options() Options { return e.opts }

// FindPath searches the published graph, departing now.
func (e *Engine) FindPath(ctx context.Context, origin, destination transit.LatLng) (*Itinerary, error) {
	g := e.graph.Load()
	if g == nil {
		return nil, ErrGraphNotReady
	}
	return g.FindPath(ctx, origin, destination, e.now())
}
