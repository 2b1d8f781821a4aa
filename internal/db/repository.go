package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"transit-planner/internal/geo"
	"transit-planner/internal/logging"
	"transit-planner/internal/transit"
)

// stopIDSeparator joins a trip's stop IDs in a single column.
const stopIDSeparator = "\x1f"

// Repository loads the planner network from a GTFS database imported with
// postgis-gtfs-importer (or any schema with the standard GTFS tables).
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	// Shapes attaches encoded route shapes to journeys. It costs one query
	// per representative trip.
	Shapes bool
}

func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logging.OrDiscard(logger), now: time.Now}
}

// SetClock overrides the date used to pick active services.
func (r *Repository) SetClock(now func() time.Time) { r.now = now }

func (r *Repository) String() string { return "postgres" }

// Load reads stops, routes and today's trips. When no service runs today the
// whole timetable is used instead.
func (r *Repository) Load(ctx context.Context) (*transit.Network, error) {
	stops, err := r.fetchStops(ctx)
	if err != nil {
		return nil, err
	}
	routes, err := r.fetchRoutes(ctx)
	if err != nil {
		return nil, err
	}
	services, err := fetchActiveServiceIDs(ctx, r.db, r.now())
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		r.logger.Warn("no active services today, using all trips")
	}
	trips, err := r.fetchTrips(ctx, services)
	if err != nil {
		return nil, err
	}

	var polyline transit.PolylineFunc
	if r.Shapes {
		polyline = func(shapeID string) string {
			pts, err := fetchShapePoints(ctx, r.db, shapeID)
			if err != nil {
				logging.LogError(r.logger, "failed to load shape", err, slog.String("shape_id", shapeID))
				return ""
			}
			return geo.EncodePolyline(pts)
		}
	}

	n := &transit.Network{Stops: stops, Routes: transit.AttachJourneys(routes, trips, polyline)}
	logging.LogOperation(r.logger, "network_loaded",
		slog.String("source", r.String()),
		slog.Int("stops", len(stops)),
		slog.Int("routes", len(routes)),
		slog.Int("trips", len(trips)),
		slog.Int("active_services", len(services)))
	return n, nil
}

func (r *Repository) fetchStops(ctx context.Context) ([]transit.Stop, error) {
	// Prefer stop_lat/stop_lon, but support PostGIS stop_loc geography as fallback
	cols, err := hasColumns(ctx, r.db, "public", "stops", "stop_lat", "stop_lon", "stop_loc")
	if err != nil {
		return nil, fmt.Errorf("introspect stops columns: %w", err)
	}
	var q string
	switch {
	case cols["stop_lat"] && cols["stop_lon"]:
		q = `SELECT stop_id, COALESCE(stop_name, ''), COALESCE(stop_lat, 0), COALESCE(stop_lon, 0)
             FROM stops ORDER BY stop_id`
	case cols["stop_loc"]:
		q = `SELECT stop_id, COALESCE(stop_name, ''),
                    COALESCE(ST_Y(stop_loc::geometry), 0),
                    COALESCE(ST_X(stop_loc::geometry), 0)
             FROM stops ORDER BY stop_id`
	default:
		return nil, fmt.Errorf("stops table missing expected columns (stop_lat/lon or stop_loc)")
	}

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()
	var stops []transit.Stop
	for rows.Next() {
		var s transit.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lng); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func (r *Repository) fetchRoutes(ctx context.Context) ([]transit.Route, error) {
	q := `SELECT route_id, COALESCE(route_short_name, ''), COALESCE(route_long_name, ''), COALESCE(route_color, '')
          FROM routes ORDER BY route_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()
	var routes []transit.Route
	for rows.Next() {
		var id, short, long, color string
		if err := rows.Scan(&id, &short, &long, &color); err != nil {
			return nil, err
		}
		routes = append(routes, transit.Route{ID: id, Name: transit.RouteName(short, long), Color: transit.NormalizeColor(color)})
	}
	return routes, rows.Err()
}

// fetchTrips returns one row per trip with its ordered stop IDs. A nil
// services slice means every trip.
func (r *Repository) fetchTrips(ctx context.Context, services []string) ([]transit.Trip, error) {
	q := `
SELECT t.trip_id, t.route_id, COALESCE(t.service_id, ''), COALESCE(t.direction_id::text, ''),
       COALESCE(t.shape_id, ''),
       COALESCE(MIN(st.departure_time)::text, MIN(st.arrival_time)::text, ''),
       string_agg(st.stop_id, E'\x1f' ORDER BY st.stop_sequence)
FROM trips t
JOIN stop_times st ON st.trip_id = t.trip_id
%s
GROUP BY t.trip_id, t.route_id, t.service_id, t.direction_id, t.shape_id
ORDER BY t.trip_id`
	var args []any
	where := ""
	if len(services) > 0 {
		where = "WHERE t.service_id = ANY($1)"
		args = append(args, services)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(q, where), args...)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()
	var trips []transit.Trip
	for rows.Next() {
		var t transit.Trip
		var dir, dep, stopIDs string
		if err := rows.Scan(&t.ID, &t.RouteID, &t.ServiceID, &dir, &t.ShapeID, &dep, &stopIDs); err != nil {
			return nil, err
		}
		t.Direction = parseDirection(dir)
		t.Departure = time.Duration(parseDaySeconds(dep)) * time.Second
		t.StopIDs = splitStopIDs(stopIDs)
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func splitStopIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, stopIDSeparator)
}
