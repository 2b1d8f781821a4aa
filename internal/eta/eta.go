// Package eta predicts when the next bus on a route reaches a stop, using the
// route's timetable and a constant bus speed. It is a schedule estimate, not
// live tracking.
package eta

import (
	"fmt"
	"slices"
	"time"

	"transit-planner/internal/geo"
	"transit-planner/internal/transit"
)

// DefaultBusSpeedMPS is used when Estimate is given a non-positive speed.
const DefaultBusSpeedMPS = 5.5

type Status int

const (
	StatusOK Status = iota
	// StatusNoStopSelected means the stop is not on the chosen journey.
	StatusNoStopSelected
	// StatusUnavailable means the timetable or stop list could not be used.
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoStopSelected:
		return "no_stop_selected"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

type Result struct {
	Status Status
	// Departure is the run from the first stop that serves the stop next.
	Departure time.Time
	Arrival   time.Time
	// Wait is Arrival minus the reference time.
	Wait time.Duration
	// TravelTime is the ride from the first stop of the journey.
	TravelTime time.Duration
	StopIndex  int
	// NextDay is set when no run is left today and the first run of the
	// following day was used.
	NextDay bool
	Reason  string
}

// String renders the result for riders.
func (r Result) String() string {
	switch r.Status {
	case StatusNoStopSelected:
		return "choose a stop"
	case StatusUnavailable:
		return "no estimate available"
	}
	switch {
	case r.Wait < time.Minute:
		secs := int((r.Wait + time.Second - 1) / time.Second)
		return fmt.Sprintf("arrives in %d s", secs)
	case r.Wait < time.Hour:
		return fmt.Sprintf("arrives in %d min", int(r.Wait/time.Minute))
	default:
		h := int(r.Wait / time.Hour)
		m := int((r.Wait % time.Hour) / time.Minute)
		return fmt.Sprintf("arrives in %d h %d min", h, m)
	}
}

// Minutes is the wait rounded down to whole minutes.
func (r Result) Minutes() int { return int(r.Wait / time.Minute) }

func unavailable(reason string) Result {
	return Result{Status: StatusUnavailable, StopIndex: -1, Reason: reason}
}

// Estimate finds the first run of route in direction that reaches stopID
// strictly after now. Runs leave the first stop every
// DepartureIntervalMinutes from the journey's first departure up to its last
// departure; a non-positive interval or a missing last departure means a
// single run. When no run is left today the next day's first run is used.
// Schedule times are read in now's location.
func Estimate(route transit.Route, direction transit.Direction, stopID string, stops map[string]transit.Stop, now time.Time, busSpeedMPS float64) Result {
	journey, ok := route.Journey(direction)
	if !ok {
		return unavailable(fmt.Sprintf("unknown direction %q", direction))
	}
	idx := slices.Index(journey.StopIDs, stopID)
	if idx < 0 {
		return Result{Status: StatusNoStopSelected, StopIndex: -1}
	}
	if busSpeedMPS <= 0 {
		busSpeedMPS = DefaultBusSpeedMPS
	}

	meters := 0.0
	for i := 1; i <= idx; i++ {
		a, okA := stops[journey.StopIDs[i-1]]
		b, okB := stops[journey.StopIDs[i]]
		if !okA || !okB {
			return unavailable("journey references an unknown stop")
		}
		meters += geo.Between(a.Coordinates(), b.Coordinates())
	}
	travel := time.Duration(meters / busSpeedMPS * float64(time.Second))

	first, err := transit.ParseClock(journey.FirstDeparture)
	if err != nil {
		return unavailable(err.Error())
	}
	last := first
	if journey.LastDeparture != "" {
		if last, err = transit.ParseClock(journey.LastDeparture); err != nil {
			return unavailable(err.Error())
		}
	}
	interval := time.Duration(route.DepartureIntervalMinutes) * time.Minute
	if interval <= 0 {
		last = first
		interval = time.Minute
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	res := Result{Status: StatusOK, TravelTime: travel, StopIndex: idx}
	for dep := first; dep <= last; dep += interval {
		departure := midnight.Add(dep)
		if arrival := departure.Add(travel); arrival.After(now) {
			res.Departure = departure
			res.Arrival = arrival
			res.Wait = arrival.Sub(now)
			return res
		}
	}

	res.NextDay = true
	res.Departure = midnight.AddDate(0, 0, 1).Add(first)
	res.Arrival = res.Departure.Add(travel)
	res.Wait = res.Arrival.Sub(now)
	return res
}
