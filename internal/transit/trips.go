package transit

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

// Trip is one scheduled run of a route as read from a GTFS feed or database.
type Trip struct {
	ID        string
	RouteID   string
	ServiceID string
	Direction Direction
	ShapeID   string
	StopIDs   []string
	// Departure is the first departure as an offset from service-day
	// midnight; GTFS allows it to exceed 24h.
	Departure time.Duration
}

// PolylineFunc returns the encoded shape for a shape ID, or "".
type PolylineFunc func(shapeID string) string

const lastClock = 23*time.Hour + 59*time.Minute

// AttachJourneys fills the outbound and inbound journeys of routes from
// their trips. Per direction, only trips of the service with the most runs
// are used; the run with the most stops supplies the stop sequence and shape,
// and the first and last runs bound the timetable. The route's departure
// interval is the median gap between outbound runs, or inbound when outbound
// has fewer than two runs. Routes without trips keep empty journeys.
func AttachJourneys(routes []Route, trips []Trip, polyline PolylineFunc) []Route {
	type key struct {
		route string
		dir   Direction
	}
	groups := make(map[key][]Trip)
	for _, t := range trips {
		if t.Direction != Inbound {
			t.Direction = Outbound
		}
		k := key{t.RouteID, t.Direction}
		groups[k] = append(groups[k], t)
	}

	out := make([]Route, len(routes))
	for i, r := range routes {
		outbound, outHeadway := summarize(groups[key{r.ID, Outbound}], polyline)
		inbound, inHeadway := summarize(groups[key{r.ID, Inbound}], polyline)
		r.Outbound = outbound
		r.Inbound = inbound
		r.DepartureIntervalMinutes = outHeadway
		if r.DepartureIntervalMinutes == 0 {
			r.DepartureIntervalMinutes = inHeadway
		}
		out[i] = r
	}
	return out
}

func summarize(trips []Trip, polyline PolylineFunc) (Journey, int) {
	trips = dominantService(trips)
	if len(trips) == 0 {
		return Journey{}, 0
	}

	rep := slices.MaxFunc(trips, func(a, b Trip) int {
		if c := cmp.Compare(len(a.StopIDs), len(b.StopIDs)); c != 0 {
			return c
		}
		// earlier, then lower ID, wins
		if c := cmp.Compare(b.Departure, a.Departure); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	departures := make([]time.Duration, 0, len(trips))
	for _, t := range trips {
		departures = append(departures, t.Departure)
	}
	slices.Sort(departures)
	departures = slices.Compact(departures)

	j := Journey{
		StopIDs:        slices.Clone(rep.StopIDs),
		FirstDeparture: FormatClock(min(departures[0], lastClock)),
		LastDeparture:  FormatClock(min(departures[len(departures)-1], lastClock)),
	}
	if polyline != nil && rep.ShapeID != "" {
		j.Polyline = polyline(rep.ShapeID)
	}
	return j, medianHeadway(departures)
}

// dominantService keeps the trips of the service with the most trips, lowest
// service ID on ties.
func dominantService(trips []Trip) []Trip {
	counts := make(map[string]int)
	for _, t := range trips {
		counts[t.ServiceID]++
	}
	if len(counts) <= 1 {
		return trips
	}
	best := ""
	for id, n := range counts {
		if n > counts[best] || (n == counts[best] && id < best) {
			best = id
		}
	}
	return slices.DeleteFunc(slices.Clone(trips), func(t Trip) bool { return t.ServiceID != best })
}

// medianHeadway returns the median gap in whole minutes between sorted,
// distinct departures, or 0 for fewer than two.
func medianHeadway(departures []time.Duration) int {
	if len(departures) < 2 {
		return 0
	}
	gaps := make([]time.Duration, 0, len(departures)-1)
	for i := 1; i < len(departures); i++ {
		gaps = append(gaps, departures[i]-departures[i-1])
	}
	slices.Sort(gaps)
	mid := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		mid = (gaps[len(gaps)/2-1] + mid) / 2
	}
	return max(1, int(math.Round(mid.Minutes())))
}

// RouteName joins a GTFS short and long name, either of which may be empty.
func RouteName(short, long string) string {
	short, long = strings.TrimSpace(short), strings.TrimSpace(long)
	switch {
	case short != "" && long != "":
		return short + " " + long
	case short != "":
		return short
	default:
		return long
	}
}

// NormalizeColor turns a GTFS hex color into "#RRGGBB".
func NormalizeColor(c string) string {
	c = strings.TrimPrefix(strings.TrimSpace(c), "#")
	if c == "" {
		return ""
	}
	return "#" + strings.ToUpper(c)
}
