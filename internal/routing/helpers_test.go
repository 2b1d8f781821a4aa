package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"transit-planner/internal/transit"
)

func stop(id string, lat, lng float64) transit.Stop {
	return transit.Stop{ID: id, Name: id + " stop", Lat: lat, Lng: lng}
}

func outboundRoute(id string, stopIDs ...string) transit.Route {
	return transit.Route{
		ID:       id,
		Name:     "Line " + id,
		Color:    "#" + id,
		Outbound: transit.Journey{StopIDs: stopIDs},
	}
}

func busEdges(n *Node, target int) []Edge {
	var out []Edge
	for _, e := range n.Edges {
		if e.Type == Bus && e.Target == target {
			out = append(out, e)
		}
	}
	return out
}

func hasWalkEdge(n *Node, target int) bool {
	for _, e := range n.Edges {
		if e.Type == Walk && e.Target == target {
			return true
		}
	}
	return false
}

func busSteps(it *Itinerary) []*BusStep {
	var out []*BusStep
	for _, s := range it.Steps {
		if bs, ok := s.(*BusStep); ok {
			out = append(out, bs)
		}
	}
	return out
}

// assertDurationsConsistent checks the total is at least every step and
// matches their sum up to one minute of rounding per step.
func assertDurationsConsistent(t *testing.T, it *Itinerary) {
	t.Helper()
	sum := 0
	for _, s := range it.Steps {
		assert.GreaterOrEqual(t, s.Minutes(), 1)
		assert.LessOrEqual(t, s.Minutes(), it.TotalDurationMinutes)
		sum += s.Minutes()
	}
	assert.InDelta(t, sum, it.TotalDurationMinutes, float64(len(it.Steps)))
	assert.Equal(t, it.StartTime.Add(it.TotalDuration), it.EndTime)
}
