package routing

import (
	"math"
	"time"

	"transit-planner/internal/transit"
)

// Step is one leg of an itinerary: *WalkStep or *BusStep.
type Step interface {
	Minutes() int
	step()
}

type WalkStep struct {
	DurationMinutes int           `json:"durationMinutes"`
	Duration        time.Duration `json:"-"`
	DistanceMeters  int           `json:"distanceMeters"`
	Instructions    string        `json:"instructions"`
}

func (s *WalkStep) Minutes() int { return s.DurationMinutes }
func (*WalkStep) step()          {}

// BusStep is a ride on one route in one direction, possibly over several
// consecutive stops.
type BusStep struct {
	DurationMinutes int               `json:"durationMinutes"`
	Duration        time.Duration     `json:"-"`
	RouteID         string            `json:"routeId"`
	RouteName       string            `json:"routeName"`
	RouteColor      string            `json:"routeColor,omitempty"`
	BoardStopName   string            `json:"boardStopName"`
	AlightStopName  string            `json:"alightStopName"`
	StopsCount      int               `json:"stopsCount"`
	Direction       transit.Direction `json:"direction"`
}

func (s *BusStep) Minutes() int { return s.DurationMinutes }
func (*BusStep) step()          {}

type Itinerary struct {
	TotalDurationMinutes int           `json:"totalDurationMinutes"`
	TotalDuration        time.Duration `json:"-"`
	StartTime            time.Time     `json:"startTime"`
	EndTime              time.Time     `json:"endTime"`
	Steps                []Step        `json:"steps"`
}

// Transfers counts bus-to-bus changes.
func (it *Itinerary) Transfers() int {
	rides := 0
	for _, s := range it.Steps {
		if _, ok := s.(*BusStep); ok {
			rides++
		}
	}
	if rides == 0 {
		return 0
	}
	return rides - 1
}

const destinationLabel = "your destination"

// reconstruct walks the predecessor chain backwards from the exit node,
// prepending steps so the result reads in travel order. Consecutive bus hops
// on the same route and direction collapse into one BusStep.
func (g *Graph) reconstruct(preds []predecessor, exit int, exitMeters, totalSeconds float64, departAt time.Time) *Itinerary {
	var steps []Step
	prepend := func(s Step) { steps = append([]Step{s}, steps...) }
	addWalk := func(seconds, meters float64, to string) {
		if meters < g.opts.MinWalkStepMeters {
			return
		}
		prepend(&WalkStep{
			Duration:       seconds2duration(seconds),
			DistanceMeters: int(math.Round(meters)),
			Instructions:   "Walk to " + to,
		})
	}

	addWalk(g.opts.walkSeconds(exitMeters), exitMeters, destinationLabel)

	// laterBus is set when the edge just after this one in travel order was
	// a bus edge. Omitted short walks still break a ride.
	laterBus := false
	node := exit
	for {
		p := preds[node]
		if p.isStart() {
			addWalk(p.seconds, p.meters, g.Nodes[node].Name)
			break
		}

		switch p.edge.Type {
		case Walk:
			addWalk(p.seconds, p.edge.DistanceMeters, g.Nodes[node].Name)
			laterBus = false
		case Bus:
			next := leadingBusStep(steps)
			merge := laterBus && next != nil && next.RouteID == p.edge.RouteID && next.Direction == p.edge.Direction
			laterBus = true
			if merge {
				next.Duration += seconds2duration(p.seconds)
				next.StopsCount++
				next.BoardStopName = g.Nodes[p.from].Name
				break
			}
			prepend(&BusStep{
				Duration:       seconds2duration(p.seconds),
				RouteID:        p.edge.RouteID,
				RouteName:      p.edge.RouteName,
				RouteColor:     g.routeColors[p.edge.RouteID],
				BoardStopName:  g.Nodes[p.from].Name,
				AlightStopName: g.Nodes[node].Name,
				StopsCount:     1,
				Direction:      p.edge.Direction,
			})
		}
		node = p.from
	}

	for _, s := range steps {
		switch s := s.(type) {
		case *WalkStep:
			s.DurationMinutes = roundMinutes(s.Duration)
		case *BusStep:
			s.DurationMinutes = roundMinutes(s.Duration)
		}
	}

	total := seconds2duration(totalSeconds)
	return &Itinerary{
		TotalDurationMinutes: roundMinutes(total),
		TotalDuration:        total,
		StartTime:            departAt,
		EndTime:              departAt.Add(total),
		Steps:                steps,
	}
}

func leadingBusStep(steps []Step) *BusStep {
	if len(steps) == 0 {
		return nil
	}
	bs, _ := steps[0].(*BusStep)
	return bs
}

// directWalk is the single-step itinerary used when no stop-based route is
// better or possible. Its duration rounds up.
func directWalk(meters float64, opts Options, departAt time.Time) *Itinerary {
	d := seconds2duration(opts.walkSeconds(meters))
	mins := int(math.Ceil(d.Minutes()))
	if mins < 1 {
		mins = 1
	}
	return &Itinerary{
		TotalDurationMinutes: mins,
		TotalDuration:        d,
		StartTime:            departAt,
		EndTime:              departAt.Add(d),
		Steps: []Step{&WalkStep{
			DurationMinutes: mins,
			Duration:        d,
			DistanceMeters:  int(math.Round(meters)),
			Instructions:    "Walk to " + destinationLabel,
		}},
	}
}

func seconds2duration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// roundMinutes rounds to the nearest whole minute, never below one.
func roundMinutes(d time.Duration) int {
	m := int(math.Round(d.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}
