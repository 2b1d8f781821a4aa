// Package transit defines the stop and route collections the planner is built
// from. Values are treated as immutable once loaded.
package transit

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

type Stop struct {
	ID   string  `yaml:"id" validate:"required"`
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lng  float64 `yaml:"lng" validate:"gte=-180,lte=180"`
}

func (s Stop) Coordinates() LatLng { return LatLng{Lat: s.Lat, Lng: s.Lng} }

type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// Journey is one directional traversal of a route's stop sequence.
type Journey struct {
	Direction      Direction `yaml:"direction" validate:"omitempty,oneof=outbound inbound"`
	StopIDs        []string  `yaml:"stops" validate:"dive,required"`
	FirstDeparture string    `yaml:"firstDeparture" validate:"omitempty,hhmm"`
	LastDeparture  string    `yaml:"lastDeparture" validate:"omitempty,hhmm"`
	// Polyline is an encoded shape for map rendering; the planner ignores it.
	Polyline string `yaml:"polyline,omitempty"`
}

type Route struct {
	ID                       string  `yaml:"id" validate:"required"`
	Name                     string  `yaml:"name"`
	Color                    string  `yaml:"color,omitempty"`
	DepartureIntervalMinutes int     `yaml:"departureIntervalMinutes" validate:"gte=0"`
	Outbound                 Journey `yaml:"outbound"`
	Inbound                  Journey `yaml:"inbound"`
}

// Journey returns the route's journey for the given direction.
func (r Route) Journey(d Direction) (Journey, bool) {
	switch d {
	case Outbound:
		j := r.Outbound
		j.Direction = Outbound
		return j, true
	case Inbound:
		j := r.Inbound
		j.Direction = Inbound
		return j, true
	default:
		return Journey{}, false
	}
}

// Journeys returns the outbound and inbound journeys with their directions set.
func (r Route) Journeys() []Journey {
	out, _ := r.Journey(Outbound)
	in, _ := r.Journey(Inbound)
	return []Journey{out, in}
}

type Network struct {
	Stops  []Stop  `yaml:"stops" validate:"dive"`
	Routes []Route `yaml:"routes" validate:"dive"`
}

// StopIndex maps stop IDs to stops. On duplicate IDs the first stop wins.
func (n *Network) StopIndex() map[string]Stop {
	idx := make(map[string]Stop, len(n.Stops))
	for _, s := range n.Stops {
		if _, exists := idx[s.ID]; exists {
			continue
		}
		idx[s.ID] = s
	}
	return idx
}

// FindRoute returns the route with the given ID.
func (n *Network) FindRoute(id string) (Route, bool) {
	for _, r := range n.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

// Fingerprint hashes the content of the network. Two networks with the same
// fingerprint produce the same graph.
func (n *Network) Fingerprint() uint64 {
	h := xxhash.New()
	write := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.WriteString("\x00")
	}
	writeFloat := func(f float64) { write(strconv.FormatFloat(f, 'g', -1, 64)) }

	for _, s := range n.Stops {
		write(s.ID)
		write(s.Name)
		writeFloat(s.Lat)
		writeFloat(s.Lng)
	}
	write("routes")
	for _, r := range n.Routes {
		write(r.ID)
		write(r.Name)
		write(r.Color)
		write(strconv.Itoa(r.DepartureIntervalMinutes))
		for _, j := range r.Journeys() {
			write(string(j.Direction))
			write(j.FirstDeparture)
			write(j.LastDeparture)
			write(strconv.Itoa(len(j.StopIDs)))
			for _, id := range j.StopIDs {
				write(id)
			}
		}
	}
	return h.Sum64()
}
