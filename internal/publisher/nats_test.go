package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transit-planner/internal/planner"
	"transit-planner/internal/routing"
	"transit-planner/internal/transit"
)

type fakePlanner struct {
	it  *routing.Itinerary
	err error

	origin, destination transit.LatLng
}

func (f *fakePlanner) Plan(_ context.Context, origin, destination transit.LatLng) (*routing.Itinerary, error) {
	f.origin, f.destination = origin, destination
	return f.it, f.err
}

func TestSubjectToken(t *testing.T) {
	cases := map[string]string{
		"madrid":       "madrid",
		" las palmas ": "las_palmas",
		"a.b>c*d/e":    "a_b_c_d_e",
		"":             "_",
	}
	for in, want := range cases {
		assert.Equal(t, want, subjectToken(in), "input %q", in)
	}
}

func TestEventSubject(t *testing.T) {
	assert.Equal(t, "transit.graph.gran_canaria.built", EventSubject("transit.graph", "gran canaria"))
	assert.Equal(t, "transit.graph._.built", EventSubject("transit.graph", ""))
}

func TestHandlePlanRequest(t *testing.T) {
	it := &routing.Itinerary{
		TotalDurationMinutes: 12,
		Steps:                []routing.Step{&routing.WalkStep{DurationMinutes: 12, DistanceMeters: 900, Instructions: "Walk to your destination"}},
	}
	p := &fakePlanner{it: it}

	reply := handlePlanRequest(context.Background(), p,
		[]byte(`{"origin":{"lat":28.1,"lng":-15.4},"destination":{"lat":28.2,"lng":-15.5}}`))

	require.Empty(t, reply.Code)
	assert.Same(t, it, reply.Itinerary)
	assert.Equal(t, transit.LatLng{Lat: 28.1, Lng: -15.4}, p.origin)
	assert.Equal(t, transit.LatLng{Lat: 28.2, Lng: -15.5}, p.destination)

	b, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"totalDurationMinutes":12`)
	assert.NotContains(t, string(b), `"code"`)
}

func TestHandlePlanRequestErrors(t *testing.T) {
	valid := []byte(`{"origin":{"lat":1,"lng":1},"destination":{"lat":2,"lng":2}}`)
	tests := []struct {
		name string
		data []byte
		err  error
		code string
	}{
		{"malformed", []byte(`{"origin":`), nil, CodeInvalidRequest},
		{"out of range", []byte(`{"origin":{"lat":91,"lng":0},"destination":{"lat":0,"lng":0}}`), nil, CodeInvalidRequest},
		{"no path", valid, routing.ErrNoPath, CodeNoPath},
		{"timeout", valid, context.DeadlineExceeded, CodeTimeout},
		{"canceled", valid, fmt.Errorf("load network: %w", context.Canceled), CodeCanceled},
		{"internal", valid, errors.New("database down"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := handlePlanRequest(context.Background(), &fakePlanner{err: tt.err}, tt.data)
			assert.Equal(t, tt.code, reply.Code)
			assert.NotEmpty(t, reply.Error)
			assert.Nil(t, reply.Itinerary)
		})
	}
}

func TestNewGraphBuiltEvent(t *testing.T) {
	built := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	ev := newGraphBuiltEvent(planner.Snapshot{
		Source:      "gtfs:feed.zip",
		Fingerprint: 0xbeef,
		Stats:       routing.BuildStats{Nodes: 10, BusEdges: 14, WalkEdges: 6},
		Routes:      3,
		BuiltAt:     built,
		BuildTime:   1500 * time.Millisecond,
	})

	assert.Equal(t, GraphBuiltEvent{
		Type:        "graph_built",
		Source:      "gtfs:feed.zip",
		Fingerprint: "beef",
		Nodes:       10,
		BusEdges:    14,
		WalkEdges:   6,
		Routes:      3,
		BuiltAt:     built,
		BuildMs:     1500,
	}, ev)
}
