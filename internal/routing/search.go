package routing

import (
	"context"
	"errors"
	"math"
	"time"

	"transit-planner/internal/geo"
	"transit-planner/internal/transit"
)

var (
	// ErrNoPath means neither a stop-based route nor a direct walk connects
	// the two points.
	ErrNoPath = errors.New("no path found")
	// ErrGraphNotReady is returned when searching before a graph was built.
	ErrGraphNotReady = errors.New("graph not built")
)

// cancelCheckInterval is how many settled nodes pass between ctx checks.
const cancelCheckInterval = 256

// predecessor records how the search reached a node. A negative from marks a
// walk from the origin; there is nothing behind it.
type predecessor struct {
	from    int
	edge    Edge
	seconds float64
	meters  float64
}

func (p predecessor) isStart() bool { return p.from < 0 }

// FindPath runs a multi-source, multi-sink label-setting search from every
// stop within walking range of origin to every stop within walking range of
// destination. Bus edges are penalized depending on how the current node was
// reached (see transitionPenalty). Walking the whole way competes with the
// stop-based routes when the points are close enough.
func (g *Graph) FindPath(ctx context.Context, origin, destination transit.LatLng, departAt time.Time) (*Itinerary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := g.opts

	direct := geo.Between(origin, destination)
	bestTotal := math.Inf(1)
	if direct < opts.DirectWalkMaxMeters {
		bestTotal = opts.walkSeconds(direct)
	}

	starts := g.StopsNear(origin, opts.MaxWalkingDistanceMeters)
	goals := g.StopsNear(destination, opts.MaxWalkingDistanceMeters)

	if direct < opts.ImmediateWalkMaxMeters && len(starts) == 0 && len(goals) == 0 {
		return directWalk(direct, opts, departAt), nil
	}
	if len(starts) == 0 || len(goals) == 0 {
		return g.fallback(direct, departAt)
	}

	goalMeters := make(map[int]float64, len(goals))
	for _, s := range goals {
		goalMeters[s.Node] = s.DistanceMeters
	}

	n := len(g.Nodes)
	best := make([]float64, n)
	for i := range best {
		best[i] = math.Inf(1)
	}
	preds := make([]predecessor, n)
	settled := make([]bool, n)
	pq := &priorityQueue{}

	for _, s := range starts {
		cost := opts.walkSeconds(s.DistanceMeters)
		if cost < best[s.Node] {
			best[s.Node] = cost
			preds[s.Node] = predecessor{from: -1, seconds: cost, meters: s.DistanceMeters}
			pq.push(s.Node, cost)
		}
	}

	exit := -1
	popped := 0
	for pq.Len() > 0 {
		item := pq.pop()
		u := item.node
		if settled[u] || item.cost > best[u] {
			continue
		}
		// Nothing popped from here on can beat the best arrival.
		if item.cost >= bestTotal {
			break
		}
		popped++
		if popped%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		settled[u] = true

		if meters, ok := goalMeters[u]; ok {
			total := item.cost + opts.walkSeconds(meters)
			if total < bestTotal {
				bestTotal = total
				exit = u
			}
		}

		incoming := preds[u]
		for _, e := range g.Nodes[u].Edges {
			if settled[e.Target] {
				continue
			}
			w := e.WeightSeconds + opts.transitionPenalty(incoming, e)
			cost := item.cost + w
			if cost < best[e.Target] {
				best[e.Target] = cost
				preds[e.Target] = predecessor{from: u, edge: e, seconds: w}
				pq.push(e.Target, cost)
			}
		}
	}

	if exit < 0 {
		return g.fallback(direct, departAt)
	}
	return g.reconstruct(preds, exit, goalMeters[exit], bestTotal, departAt), nil
}

// transitionPenalty is the extra cost of taking next after arriving through
// incoming. Only bus edges are penalized: boarding after a walk, riding the
// same route the other way, or changing to a different route.
func (o Options) transitionPenalty(incoming predecessor, next Edge) float64 {
	if next.Type != Bus {
		return 0
	}
	if incoming.isStart() || incoming.edge.Type == Walk {
		return penalty(o.BoardingPenaltySeconds)
	}
	if incoming.edge.RouteID == next.RouteID {
		if incoming.edge.Direction != next.Direction {
			return penalty(o.WrongDirectionPenaltySeconds)
		}
		return 0
	}
	return penalty(o.TransferPenaltySeconds)
}

func (g *Graph) fallback(direct float64, departAt time.Time) (*Itinerary, error) {
	if direct >= g.opts.DirectWalkMaxMeters {
		return nil, ErrNoPath
	}
	return directWalk(direct, g.opts, departAt), nil
}
