package planner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-planner/internal/eta"
	"transit-planner/internal/routing"
	"transit-planner/internal/transit"
)

type fakeSource struct {
	mu      sync.Mutex
	network *transit.Network
	err     error
	loads   atomic.Int32
}

func (s *fakeSource) Load(context.Context) (*transit.Network, error) {
	s.loads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.network, nil
}

func (s *fakeSource) String() string { return "fake" }

func (s *fakeSource) set(n *transit.Network, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network, s.err = n, err
}

type fakeMetrics struct {
	mu       sync.Mutex
	builds   int
	skipped  int
	errors   int
	plans    []string
	etas     []string
	lastNode int
}

func (m *fakeMetrics) ObserveBuild(nodes, _, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds++
	m.lastNode = nodes
}
func (m *fakeMetrics) ObserveBuildSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped++
}
func (m *fakeMetrics) ObserveBuildError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}
func (m *fakeMetrics) ObservePlan(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = append(m.plans, result)
}
func (m *fakeMetrics) ObserveETA(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etas = append(m.etas, status)
}

func lineNetwork() *transit.Network {
	return &transit.Network{
		Stops: []transit.Stop{
			{ID: "A", Name: "Alpha", Lat: 0, Lng: 0},
			{ID: "B", Name: "Bravo", Lat: 0, Lng: 0.01},
			{ID: "C", Name: "Charlie", Lat: 0, Lng: 0.02},
		},
		Routes: []transit.Route{{
			ID:                       "r1",
			Name:                     "Line 1",
			DepartureIntervalMinutes: 10,
			Outbound:                 transit.Journey{StopIDs: []string{"A", "B", "C"}, FirstDeparture: "06:00", LastDeparture: "22:00"},
			Inbound:                  transit.Journey{StopIDs: []string{"C", "B", "A"}, FirstDeparture: "06:05", LastDeparture: "22:05"},
		}},
	}
}

var fixedNow = time.Date(2025, 3, 14, 8, 2, 0, 0, time.UTC)

func newTestManager(src Source, m Metrics) *Manager {
	mgr := NewManager(src, Config{Location: time.UTC, SearchTimeout: time.Second, Metrics: m})
	mgr.SetClock(func() time.Time { return fixedNow })
	return mgr
}

func TestPlanBuildsLazily(t *testing.T) {
	src := &fakeSource{network: lineNetwork()}
	fm := &fakeMetrics{}
	mgr := newTestManager(src, fm)

	assert.False(t, mgr.Ready())
	_, ok := mgr.Stats()
	assert.False(t, ok)

	it, err := mgr.Plan(context.Background(), transit.LatLng{Lat: 0, Lng: 0}, transit.LatLng{Lat: 0, Lng: 0.01})
	require.NoError(t, err)
	require.Len(t, it.Steps, 1)
	assert.IsType(t, &routing.BusStep{}, it.Steps[0])
	assert.Equal(t, fixedNow, it.StartTime)

	assert.True(t, mgr.Ready())
	snap, ok := mgr.Stats()
	require.True(t, ok)
	assert.Equal(t, "fake", snap.Source)
	assert.Equal(t, 3, snap.Stats.Nodes)
	assert.Equal(t, 4, snap.Stats.BusEdges)
	assert.Equal(t, 1, snap.Routes)
	assert.Equal(t, lineNetwork().Fingerprint(), snap.Fingerprint)

	assert.Equal(t, 1, fm.builds)
	assert.Equal(t, []string{"routed"}, fm.plans)
}

func TestConcurrentFirstRequestsBuildOnce(t *testing.T) {
	src := &fakeSource{network: lineNetwork()}
	mgr := newTestManager(src, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Plan(context.Background(), transit.LatLng{}, transit.LatLng{Lat: 0, Lng: 0.02})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), src.loads.Load())
}

func TestRefreshRebuildsOnlyOnChange(t *testing.T) {
	src := &fakeSource{network: lineNetwork()}
	fm := &fakeMetrics{}
	mgr := newTestManager(src, fm)

	var events []Snapshot
	mgr.OnBuild(func(s Snapshot) { events = append(events, s) })

	built, err := mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, built)

	built, err = mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, built)
	assert.Equal(t, 1, fm.skipped)

	changed := lineNetwork()
	changed.Stops = append(changed.Stops, transit.Stop{ID: "D", Name: "Delta", Lat: 0, Lng: 0.03})
	src.set(changed, nil)

	built, err = mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, built)
	require.Len(t, events, 2)
	assert.Equal(t, 4, events[1].Stats.Nodes)
	assert.Equal(t, 4, fm.lastNode)
}

func TestRefreshKeepsGraphOnFailure(t *testing.T) {
	src := &fakeSource{network: lineNetwork()}
	fm := &fakeMetrics{}
	mgr := newTestManager(src, fm)
	_, err := mgr.Refresh(context.Background())
	require.NoError(t, err)

	loadErr := errors.New("database unavailable")
	src.set(nil, loadErr)
	_, err = mgr.Refresh(context.Background())
	assert.ErrorIs(t, err, loadErr)
	assert.ErrorContains(t, err, "load network from fake")
	assert.Equal(t, 1, fm.errors)

	assert.True(t, mgr.Ready())
	_, err = mgr.Plan(context.Background(), transit.LatLng{}, transit.LatLng{Lat: 0, Lng: 0.01})
	assert.NoError(t, err)
}

func TestRefreshRejectsInvalidNetwork(t *testing.T) {
	bad := lineNetwork()
	bad.Stops[0].Lat = 123
	mgr := newTestManager(&fakeSource{network: bad}, nil)

	_, err := mgr.Refresh(context.Background())
	assert.ErrorContains(t, err, "invalid network")
	assert.False(t, mgr.Ready())
}

func TestPlanErrors(t *testing.T) {
	t.Run("source failure on first use", func(t *testing.T) {
		mgr := newTestManager(&fakeSource{err: errors.New("boom")}, nil)
		_, err := mgr.Plan(context.Background(), transit.LatLng{}, transit.LatLng{Lat: 0.01})
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("no path", func(t *testing.T) {
		fm := &fakeMetrics{}
		mgr := newTestManager(&fakeSource{network: lineNetwork()}, fm)
		_, err := mgr.Plan(context.Background(), transit.LatLng{Lat: 1, Lng: 1}, transit.LatLng{Lat: 2, Lng: 2})
		assert.ErrorIs(t, err, routing.ErrNoPath)
		assert.Equal(t, []string{"no_path"}, fm.plans)
	})

	t.Run("walk", func(t *testing.T) {
		fm := &fakeMetrics{}
		mgr := newTestManager(&fakeSource{network: lineNetwork()}, fm)
		_, err := mgr.Plan(context.Background(), transit.LatLng{Lat: 1, Lng: 1}, transit.LatLng{Lat: 1, Lng: 1.001})
		assert.NoError(t, err)
		assert.Equal(t, []string{"walk"}, fm.plans)
	})
}

func TestETA(t *testing.T) {
	fm := &fakeMetrics{}
	mgr := newTestManager(&fakeSource{network: lineNetwork()}, fm)

	res, err := mgr.ETA(context.Background(), "r1", transit.Outbound, "A")
	require.NoError(t, err)
	assert.Equal(t, eta.StatusOK, res.Status)
	assert.Equal(t, "arrives in 8 min", res.String())

	res, err = mgr.ETA(context.Background(), "r1", transit.Inbound, "missing")
	require.NoError(t, err)
	assert.Equal(t, eta.StatusNoStopSelected, res.Status)

	_, err = mgr.ETA(context.Background(), "nope", transit.Outbound, "A")
	assert.ErrorIs(t, err, ErrRouteNotFound)

	assert.Equal(t, []string{"ok", "no_stop_selected"}, fm.etas)
}

func TestRoutesAndStopsNear(t *testing.T) {
	mgr := newTestManager(&fakeSource{network: lineNetwork()}, nil)

	routes, err := mgr.Routes(context.Background())
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "r1", routes[0].ID)

	near, err := mgr.StopsNear(context.Background(), transit.LatLng{Lat: 0, Lng: 0.011}, 1500)
	require.NoError(t, err)
	require.Len(t, near, 3)
	assert.Equal(t, "B", near[0].Stop.ID)
	assert.Equal(t, "C", near[1].Stop.ID)
	assert.Equal(t, "A", near[2].Stop.ID)
	assert.Less(t, near[0].DistanceMeters, near[1].DistanceMeters)
}

func TestRefresherRebuildsInBackground(t *testing.T) {
	src := &fakeSource{network: lineNetwork()}
	mgr := NewManager(src, Config{RefreshInterval: 10 * time.Millisecond})
	built := make(chan Snapshot, 8)
	mgr.OnBuild(func(s Snapshot) { built <- s })

	mgr.StartRefresher(context.Background())
	defer mgr.Stop()

	select {
	case s := <-built:
		assert.Equal(t, 3, s.Stats.Nodes)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not build a graph")
	}
	assert.Eventually(t, func() bool { return src.loads.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestStopWithoutRefresher(t *testing.T) {
	mgr := NewManager(&fakeSource{network: lineNetwork()}, Config{})
	mgr.StartRefresher(context.Background())
	assert.NotPanics(t, mgr.Stop)
}

func TestReadyWaitsForSnapshot(t *testing.T) {
	mgr := NewManager(&fakeSource{network: lineNetwork()}, Config{Location: time.UTC})

	// The clock is read while the snapshot is assembled, after the graph
	// itself is built; hold the build there.
	inBuild := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	mgr.SetClock(func() time.Time {
		once.Do(func() {
			close(inBuild)
			<-release
		})
		return fixedNow
	})

	built := make(chan error, 1)
	go func() {
		_, err := mgr.Refresh(context.Background())
		built <- err
	}()
	<-inBuild

	assert.False(t, mgr.Ready())

	routesDone := make(chan []transit.Route, 1)
	go func() {
		routes, err := mgr.Routes(context.Background())
		assert.NoError(t, err)
		routesDone <- routes
	}()
	etaDone := make(chan error, 1)
	go func() {
		_, err := mgr.ETA(context.Background(), "r1", transit.Outbound, "A")
		etaDone <- err
	}()

	select {
	case <-routesDone:
		t.Fatal("Routes returned before the snapshot was published")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-built)
	assert.Len(t, <-routesDone, 1)
	assert.NoError(t, <-etaDone)
	assert.True(t, mgr.Ready())
}
