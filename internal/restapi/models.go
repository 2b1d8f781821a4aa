package restapi

import (
	"math"
	"time"

	"transit-planner/internal/eta"
	"transit-planner/internal/geo"
	"transit-planner/internal/planner"
	"transit-planner/internal/transit"
)

type Journey struct {
	Direction      transit.Direction `json:"direction"`
	StopIDs        []string          `json:"stopIds"`
	FirstDeparture string            `json:"firstDeparture,omitempty"`
	LastDeparture  string            `json:"lastDeparture,omitempty"`
	Polyline       string            `json:"polyline,omitempty"`
	// LengthMeters is measured along the polyline; absent without one.
	LengthMeters float64 `json:"lengthMeters,omitempty"`
}

type Route struct {
	ID                       string  `json:"id"`
	Name                     string  `json:"name"`
	Color                    string  `json:"color,omitempty"`
	DepartureIntervalMinutes int     `json:"departureIntervalMinutes"`
	Outbound                 Journey `json:"outbound"`
	Inbound                  Journey `json:"inbound"`
}

func newJourney(j transit.Journey, d transit.Direction) Journey {
	ids := j.StopIDs
	if ids == nil {
		ids = []string{}
	}
	out := Journey{
		Direction:      d,
		StopIDs:        ids,
		FirstDeparture: j.FirstDeparture,
		LastDeparture:  j.LastDeparture,
		Polyline:       j.Polyline,
	}
	if j.Polyline != "" {
		if pts, err := geo.DecodePolyline(j.Polyline); err == nil {
			out.LengthMeters = math.Round(geo.PathLength(pts))
		}
	}
	return out
}

func newRoute(r transit.Route) Route {
	return Route{
		ID:                       r.ID,
		Name:                     r.Name,
		Color:                    r.Color,
		DepartureIntervalMinutes: r.DepartureIntervalMinutes,
		Outbound:                 newJourney(r.Outbound, transit.Outbound),
		Inbound:                  newJourney(r.Inbound, transit.Inbound),
	}
}

type ETA struct {
	RouteID     string            `json:"routeId"`
	Direction   transit.Direction `json:"direction"`
	StopID      string            `json:"stopId"`
	Status      string            `json:"status"`
	Message     string            `json:"message"`
	WaitSeconds int64             `json:"waitSeconds,omitempty"`
	Departure   *time.Time        `json:"departure,omitempty"`
	Arrival     *time.Time        `json:"arrival,omitempty"`
	NextDay     bool              `json:"nextDay,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

func newETA(routeID string, d transit.Direction, stopID string, res eta.Result) ETA {
	out := ETA{
		RouteID:   routeID,
		Direction: d,
		StopID:    stopID,
		Status:    res.Status.String(),
		Message:   res.String(),
		Reason:    res.Reason,
	}
	if res.Status == eta.StatusOK {
		dep, arr := res.Departure, res.Arrival
		out.WaitSeconds = int64(res.Wait / time.Second)
		out.Departure = &dep
		out.Arrival = &arr
		out.NextDay = res.NextDay
	}
	return out
}

type NearbyStop struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	DistanceMeters float64 `json:"distanceMeters"`
}

type Graph struct {
	Source          string    `json:"source"`
	Fingerprint     string    `json:"fingerprint"`
	Nodes           int       `json:"nodes"`
	BusEdges        int       `json:"busEdges"`
	WalkEdges       int       `json:"walkEdges"`
	SkippedJourneys int       `json:"skippedJourneys"`
	UnknownStops    int       `json:"unknownStops"`
	Routes          int       `json:"routes"`
	BuiltAt         time.Time `json:"builtAt"`
	BuildMs         int64     `json:"buildMs"`
}

func newGraph(s planner.Snapshot) Graph {
	return Graph{
		Source:          s.Source,
		Fingerprint:     fingerprintHex(s.Fingerprint),
		Nodes:           s.Stats.Nodes,
		BusEdges:        s.Stats.BusEdges,
		WalkEdges:       s.Stats.WalkEdges,
		SkippedJourneys: s.Stats.SkippedJourneys,
		UnknownStops:    s.Stats.UnknownStops,
		Routes:          s.Routes,
		BuiltAt:         s.BuiltAt,
		BuildMs:         s.BuildTime.Milliseconds(),
	}
}
