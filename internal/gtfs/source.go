// Package gtfs loads a planner network from a static GTFS feed, either a
// local zip or one downloaded over HTTP.
package gtfs

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jamespfennell/gtfs"

	"transit-planner/internal/geo"
	"transit-planner/internal/logging"
	"transit-planner/internal/transit"
)

// FileSource reads a GTFS zip from Location, a path or an http(s) URL.
type FileSource struct {
	Location string
	// Shapes attaches encoded route shapes to journeys.
	Shapes bool
	Logger *slog.Logger
	Client *http.Client
}

func (s *FileSource) String() string { return "gtfs:" + s.Location }

func (s *FileSource) Load(ctx context.Context) (*transit.Network, error) {
	b, err := s.raw(ctx)
	if err != nil {
		return nil, err
	}
	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("error parsing GTFS data: %w", err)
	}
	n := Convert(static, s.Shapes)
	logging.LogOperation(s.Logger, "network_loaded",
		slog.String("source", s.String()),
		slog.Int("stops", len(n.Stops)),
		slog.Int("routes", len(n.Routes)),
		slog.Int("trips", len(static.Trips)),
		slog.Int("warnings", len(static.Warnings)))
	return n, nil
}

func (s *FileSource) raw(ctx context.Context) ([]byte, error) {
	if !isURL(s.Location) {
		b, err := os.ReadFile(s.Location)
		if err != nil {
			return nil, fmt.Errorf("error reading local GTFS file: %w", err)
		}
		return b, nil
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading GTFS data: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, s.Logger, "close_gtfs_download")
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error downloading GTFS data: %s", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading GTFS data: %w", err)
	}
	return b, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Convert maps parsed static data onto the planner's network. Stops without
// coordinates and trips without a route or stop times are dropped.
func Convert(static *gtfs.Static, withShapes bool) *transit.Network {
	n := &transit.Network{}
	for _, s := range static.Stops {
		if s.Latitude == nil || s.Longitude == nil {
			continue
		}
		n.Stops = append(n.Stops, transit.Stop{ID: s.Id, Name: s.Name, Lat: *s.Latitude, Lng: *s.Longitude})
	}

	routes := make([]transit.Route, 0, len(static.Routes))
	for _, r := range static.Routes {
		routes = append(routes, transit.Route{
			ID:    r.Id,
			Name:  transit.RouteName(r.ShortName, r.LongName),
			Color: transit.NormalizeColor(r.Color),
		})
	}

	trips := make([]transit.Trip, 0, len(static.Trips))
	for i := range static.Trips {
		if t, ok := convertTrip(&static.Trips[i]); ok {
			trips = append(trips, t)
		}
	}

	var polyline transit.PolylineFunc
	if withShapes {
		shapes := make(map[string]*gtfs.Shape, len(static.Shapes))
		for i := range static.Shapes {
			shapes[static.Shapes[i].ID] = &static.Shapes[i]
		}
		polyline = func(id string) string {
			sh, ok := shapes[id]
			if !ok {
				return ""
			}
			pts := make([]transit.LatLng, len(sh.Points))
			for i, p := range sh.Points {
				pts[i] = transit.LatLng{Lat: p.Latitude, Lng: p.Longitude}
			}
			return geo.EncodePolyline(pts)
		}
	}

	n.Routes = transit.AttachJourneys(routes, trips, polyline)
	return n
}

func convertTrip(t *gtfs.ScheduledTrip) (transit.Trip, bool) {
	if t.Route == nil || len(t.StopTimes) == 0 {
		return transit.Trip{}, false
	}
	stopTimes := slices.Clone(t.StopTimes)
	slices.SortStableFunc(stopTimes, func(a, b gtfs.ScheduledStopTime) int {
		return cmp.Compare(a.StopSequence, b.StopSequence)
	})

	out := transit.Trip{
		ID:        t.ID,
		RouteID:   t.Route.Id,
		Direction: transit.Outbound,
		Departure: stopTimes[0].DepartureTime,
	}
	if t.Service != nil {
		out.ServiceID = t.Service.Id
	}
	if t.Shape != nil {
		out.ShapeID = t.Shape.ID
	}
	// direction_id 1 parses to the library's "true" value, 1.
	if t.DirectionId == 1 {
		out.Direction = transit.Inbound
	}
	for _, st := range stopTimes {
		if st.Stop != nil {
			out.StopIDs = append(out.StopIDs, st.Stop.Id)
		}
	}
	return out, true
}
