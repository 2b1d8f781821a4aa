package routing

import (
	"math"

	"transit-planner/internal/geo"
	"transit-planner/internal/transit"
)

type EdgeType int

const (
	Walk EdgeType = iota
	Bus
)

func (t EdgeType) String() string {
	switch t {
	case Walk:
		return "WALK"
	case Bus:
		return "BUS"
	default:
		return "UNKNOWN"
	}
}

// Edge is a directed connection from its owning node to Target. Route fields
// are only set on bus edges.
type Edge struct {
	Target         int
	WeightSeconds  float64
	DistanceMeters float64
	Type           EdgeType
	RouteID        string
	RouteName      string
	Direction      transit.Direction
}

type Node struct {
	StopID string
	Name   string
	Lat    float64
	Lng    float64
	Edges  []Edge
}

func (n *Node) Coordinates() transit.LatLng { return transit.LatLng{Lat: n.Lat, Lng: n.Lng} }

// BuildStats summarizes one graph build.
type BuildStats struct {
	Nodes           int
	BusEdges        int
	WalkEdges       int
	SkippedJourneys int
	// UnknownStops counts journey entries that reference a stop ID absent
	// from the stop list.
	UnknownStops int
}

// Graph is an arena of stop nodes addressed by index. It is never mutated
// after BuildGraph returns, so any number of searches may share it.
type Graph struct {
	Nodes []Node
	Stats BuildStats

	opts        Options
	index       map[string]int
	routeColors map[string]string
}

// BuildGraph creates one node per stop, bus edges between consecutive
// journey stops, and walk edges between every ordered pair of stops within
// walking distance. Walk edges are O(n^2) in the stop count, which is fine
// for networks of a few hundred stops.
func BuildGraph(stops []transit.Stop, routes []transit.Route, opts Options) *Graph {
	opts = opts.withDefaults()
	g := &Graph{
		Nodes:       make([]Node, 0, len(stops)),
		opts:        opts,
		index:       make(map[string]int, len(stops)),
		routeColors: make(map[string]string, len(routes)),
	}

	for _, s := range stops {
		if _, exists := g.index[s.ID]; exists {
			continue
		}
		g.index[s.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, Node{StopID: s.ID, Name: s.Name, Lat: s.Lat, Lng: s.Lng})
	}
	g.Stats.Nodes = len(g.Nodes)

	for _, r := range routes {
		g.routeColors[r.ID] = r.Color
		for _, j := range r.Journeys() {
			g.addJourney(r, j)
		}
	}

	g.addWalkEdges()
	return g
}

func (g *Graph) addJourney(r transit.Route, j transit.Journey) {
	if len(j.StopIDs) < 2 {
		g.Stats.SkippedJourneys++
		return
	}
	for i := 0; i+1 < len(j.StopIDs); i++ {
		from, okFrom := g.index[j.StopIDs[i]]
		to, okTo := g.index[j.StopIDs[i+1]]
		if !okFrom {
			g.Stats.UnknownStops++
		}
		if !okFrom || !okTo {
			continue
		}
		d := geo.Between(g.Nodes[from].Coordinates(), g.Nodes[to].Coordinates())
		g.Nodes[from].Edges = append(g.Nodes[from].Edges, Edge{
			Target:         to,
			WeightSeconds:  d / g.opts.BusSpeedMPS,
			DistanceMeters: d,
			Type:           Bus,
			RouteID:        r.ID,
			RouteName:      r.Name,
			Direction:      j.Direction,
		})
		g.Stats.BusEdges++
	}
	if _, ok := g.index[j.StopIDs[len(j.StopIDs)-1]]; !ok {
		g.Stats.UnknownStops++
	}
}

func (g *Graph) addWalkEdges() {
	box := g.opts.BoundingBoxDegrees
	for i := range g.Nodes {
		a := &g.Nodes[i]
		for j := range g.Nodes {
			if i == j {
				continue
			}
			b := &g.Nodes[j]
			if math.Abs(a.Lat-b.Lat) >= box || math.Abs(a.Lng-b.Lng) >= box {
				continue
			}
			d := geo.Distance(a.Lat, a.Lng, b.Lat, b.Lng)
			if d > g.opts.MaxWalkingDistanceMeters {
				continue
			}
			a.Edges = append(a.Edges, Edge{
				Target:         j,
				WeightSeconds:  g.opts.walkSeconds(d),
				DistanceMeters: d,
				Type:           Walk,
			})
			g.Stats.WalkEdges++
		}
	}
}

// Node returns the node for a stop ID.
func (g *Graph) Node(stopID string) (*Node, bool) {
	i, ok := g.index[stopID]
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// Options returns the tuning the graph was built with.
func (g *Graph) Options() Options { return g.opts }

// NearbyStop is a node within walking range of a point.
type NearbyStop struct {
	Node           int
	DistanceMeters float64
}

// StopsNear returns every node within radius meters of p, in node order.
func (g *Graph) StopsNear(p transit.LatLng, radius float64) []NearbyStop {
	var out []NearbyStop
	for i := range g.Nodes {
		d := geo.Distance(p.Lat, p.Lng, g.Nodes[i].Lat, g.Nodes[i].Lng)
		if d <= radius {
			out = append(out, NearbyStop{Node: i, DistanceMeters: d})
		}
	}
	return out
}
