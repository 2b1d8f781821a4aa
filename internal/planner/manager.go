// Package planner owns the lifecycle of the routing graph: it loads the
// network from a Source, builds the graph on first use, rebuilds it in the
// background when the network changes, and answers plan and ETA requests.
package planner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"transit-planner/internal/eta"
	"transit-planner/internal/logging"
	"transit-planner/internal/routing"
	"transit-planner/internal/transit"
)

// ErrRouteNotFound is returned by ETA for an unknown route ID.
var ErrRouteNotFound = errors.New("route not found")

// Source provides the network the graph is built from.
type Source interface {
	Load(ctx context.Context) (*transit.Network, error)
	String() string
}

type Metrics interface {
	ObserveBuild(nodes, busEdges, walkEdges int, d time.Duration)
	ObserveBuildSkipped()
	ObserveBuildError()
	ObservePlan(result string, d time.Duration)
	ObserveETA(status string)
}

// Snapshot describes the published graph.
type Snapshot struct {
	Source      string             `json:"source"`
	Fingerprint uint64             `json:"fingerprint"`
	Stats       routing.BuildStats `json:"stats"`
	Routes      int                `json:"routes"`
	BuiltAt     time.Time          `json:"builtAt"`
	BuildTime   time.Duration      `json:"buildTimeNs"`
}

type Config struct {
	Routing         routing.Options
	SearchTimeout   time.Duration
	RefreshInterval time.Duration
	Location        *time.Location
	Logger          *slog.Logger
	Metrics         Metrics
}

type state struct {
	network *transit.Network
	stops   map[string]transit.Stop
	snap    Snapshot
}

type Manager struct {
	src     Source
	engine  *routing.Engine
	cfg     Config
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time

	buildMu sync.Mutex
	state   atomic.Pointer[state]

	listenersMu sync.Mutex
	listeners   []func(Snapshot)

	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup
}

func NewManager(src Source, cfg Config) *Manager {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	m := &Manager{
		src:     src,
		engine:  routing.NewEngine(cfg.Routing),
		cfg:     cfg,
		logger:  logging.OrDiscard(cfg.Logger),
		metrics: cfg.Metrics,
		now:     time.Now,
	}
	m.engine.SetClock(func() time.Time { return m.now().In(m.cfg.Location) })
	return m
}

// SetClock overrides the time source for departures and ETAs.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// OnBuild registers fn to be called after every published graph.
func (m *Manager) OnBuild(fn func(Snapshot)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Ready reports whether a graph and its network snapshot are published.
func (m *Manager) Ready() bool { return m.state.Load() != nil }

// Stats returns the snapshot of the published graph.
func (m *Manager) Stats() (Snapshot, bool) {
	st := m.state.Load()
	if st == nil {
		return Snapshot{}, false
	}
	return st.snap, true
}

// Refresh reloads the network and rebuilds the graph when its fingerprint
// changed. It reports whether a new graph was published.
func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) (bool, error) {
	start := time.Now()
	n, err := m.src.Load(ctx)
	if err == nil {
		err = n.Validate()
	}
	if err != nil {
		if m.metrics != nil {
			m.metrics.ObserveBuildError()
		}
		return false, fmt.Errorf("load network from %s: %w", m.src, err)
	}

	fp := n.Fingerprint()
	if cur := m.state.Load(); cur != nil && cur.snap.Fingerprint == fp {
		if m.metrics != nil {
			m.metrics.ObserveBuildSkipped()
		}
		m.logger.Debug("network unchanged, keeping graph", slog.Uint64("fingerprint", fp))
		return false, nil
	}

	// The engine graph goes live first; state is stored last and gates
	// Ready, so a reader that sees state always finds a graph.
	g := m.engine.Build(n.Stops, n.Routes)
	elapsed := time.Since(start)
	snap := Snapshot{
		Source:      m.src.String(),
		Fingerprint: fp,
		Stats:       g.Stats,
		Routes:      len(n.Routes),
		BuiltAt:     m.now(),
		BuildTime:   elapsed,
	}
	m.state.Store(&state{network: n, stops: n.StopIndex(), snap: snap})

	if m.metrics != nil {
		m.metrics.ObserveBuild(g.Stats.Nodes, g.Stats.BusEdges, g.Stats.WalkEdges, elapsed)
	}
	if g.Stats.SkippedJourneys > 0 || g.Stats.UnknownStops > 0 {
		m.logger.Debug("degenerate journeys skipped",
			slog.Int("skipped_journeys", g.Stats.SkippedJourneys),
			slog.Int("unknown_stops", g.Stats.UnknownStops))
	}
	logging.LogOperation(m.logger, "graph_built",
		slog.String("source", snap.Source),
		slog.Int("nodes", g.Stats.Nodes),
		slog.Int("bus_edges", g.Stats.BusEdges),
		slog.Int("walk_edges", g.Stats.WalkEdges),
		slog.Duration("duration", elapsed))

	m.listenersMu.Lock()
	listeners := slices.Clone(m.listeners)
	m.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return true, nil
}

// ensureBuilt builds the first graph. Concurrent first callers wait for a
// single build.
func (m *Manager) ensureBuilt(ctx context.Context) error {
	if m.Ready() {
		return nil
	}
	m.buildMu.Lock()
	defer m.buildMu.Unlock()
	if m.Ready() {
		return nil
	}
	_, err := m.refreshLocked(ctx)
	return err
}

// Plan finds an itinerary between two points departing now.
func (m *Manager) Plan(ctx context.Context, origin, destination transit.LatLng) (*routing.Itinerary, error) {
	if err := m.ensureBuilt(ctx); err != nil {
		return nil, err
	}
	if m.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.SearchTimeout)
		defer cancel()
	}

	start := time.Now()
	it, err := m.engine.FindPath(ctx, origin, destination)
	elapsed := time.Since(start)
	result := planResult(it, err)
	if m.metrics != nil {
		m.metrics.ObservePlan(result, elapsed)
	}
	m.logger.Debug("plan_computed",
		slog.String("result", result),
		slog.Duration("duration", elapsed))
	return it, err
}

func planResult(it *routing.Itinerary, err error) string {
	switch {
	case errors.Is(err, routing.ErrNoPath):
		return "no_path"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case err != nil:
		return "error"
	}
	for _, s := range it.Steps {
		if _, ok := s.(*routing.BusStep); ok {
			return "routed"
		}
	}
	return "walk"
}

// ETA estimates the next arrival of routeID in direction at stopID.
func (m *Manager) ETA(ctx context.Context, routeID string, direction transit.Direction, stopID string) (eta.Result, error) {
	if err := m.ensureBuilt(ctx); err != nil {
		return eta.Result{}, err
	}
	st := m.state.Load()
	route, ok := st.network.FindRoute(routeID)
	if !ok {
		return eta.Result{}, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}
	res := eta.Estimate(route, direction, stopID, st.stops, m.now().In(m.cfg.Location), m.engine.Options().BusSpeedMPS)
	if m.metrics != nil {
		m.metrics.ObserveETA(res.Status.String())
	}
	return res, nil
}

// Routes returns the routes of the published network.
func (m *Manager) Routes(ctx context.Context) ([]transit.Route, error) {
	if err := m.ensureBuilt(ctx); err != nil {
		return nil, err
	}
	return m.state.Load().network.Routes, nil
}

type NearbyStop struct {
	Stop           transit.Stop
	DistanceMeters float64
}

// StopsNear lists stops within radius meters of p, closest first.
func (m *Manager) StopsNear(ctx context.Context, p transit.LatLng, radius float64) ([]NearbyStop, error) {
	if err := m.ensureBuilt(ctx); err != nil {
		return nil, err
	}
	g := m.engine.Graph()
	near := g.StopsNear(p, radius)
	out := make([]NearbyStop, 0, len(near))
	for _, ns := range near {
		n := g.Nodes[ns.Node]
		out = append(out, NearbyStop{
			Stop:           transit.Stop{ID: n.StopID, Name: n.Name, Lat: n.Lat, Lng: n.Lng},
			DistanceMeters: ns.DistanceMeters,
		})
	}
	slices.SortStableFunc(out, func(a, b NearbyStop) int { return cmp.Compare(a.DistanceMeters, b.DistanceMeters) })
	return out, nil
}

// StartRefresher launches a background loop that periodically reloads the
// network and rebuilds the graph when it changed.
func (m *Manager) StartRefresher(parent context.Context) {
	if m.cfg.RefreshInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.refreshCancel = cancel
	m.refreshWG.Add(1)
	go func() {
		defer m.refreshWG.Done()
		ticker := time.NewTicker(m.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Refresh(ctx); err != nil {
					logging.LogError(m.logger, "graph refresh failed", err,
						slog.String("source", m.src.String()))
				}
			}
		}
	}()
}

// Stop ends the refresher and waits for an in-flight refresh to finish.
func (m *Manager) Stop() {
	if m.refreshCancel != nil {
		m.refreshCancel()
	}
	m.refreshWG.Wait()
}
