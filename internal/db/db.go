package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"transit-planner/internal/transit"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// fetchActiveServiceIDs returns the services running on now's date, from
// calendar plus calendar_dates exceptions.
func fetchActiveServiceIDs(ctx context.Context, db *sql.DB, now time.Time) ([]string, error) {
	date := now.Format("2006-01-02")
	dow := int(now.Weekday()) // 0=Sunday

	// calendar flags and exception types are compared as text so both the
	// plain GTFS import and the postgis-gtfs-importer enums match.
	q := `
WITH base AS (
  SELECT service_id
  FROM calendar
  WHERE start_date <= $1::date AND end_date >= $1::date
    AND (
      ($2 = 0 AND (sunday::text IN ('1','t','true','available'))) OR
      ($2 = 1 AND (monday::text IN ('1','t','true','available'))) OR
      ($2 = 2 AND (tuesday::text IN ('1','t','true','available'))) OR
      ($2 = 3 AND (wednesday::text IN ('1','t','true','available'))) OR
      ($2 = 4 AND (thursday::text IN ('1','t','true','available'))) OR
      ($2 = 5 AND (friday::text IN ('1','t','true','available'))) OR
      ($2 = 6 AND (saturday::text IN ('1','t','true','available')))
    )
), add_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('1','added'))
), rm_exc AS (
  SELECT service_id FROM calendar_dates WHERE date = $1::date AND (exception_type::text IN ('2','removed'))
), merged AS (
  SELECT service_id FROM base
  UNION
  SELECT service_id FROM add_exc
)
SELECT DISTINCT service_id FROM merged
WHERE service_id NOT IN (SELECT service_id FROM rm_exc)
`

	rows, err := db.QueryContext(ctx, q, date, dow)
	if err != nil {
		return nil, fmt.Errorf("query active services: %w", err)
	}
	defer rows.Close()
	var svc []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		svc = append(svc, s)
	}
	return svc, rows.Err()
}

// fetchShapePoints returns a shape's points in sequence order, reading either
// shape_pt_lat/lon or the PostGIS shape_pt_loc column.
func fetchShapePoints(ctx context.Context, db *sql.DB, shapeID string) ([]transit.LatLng, error) {
	if shapeID == "" {
		return nil, nil
	}
	cols, err := hasColumns(ctx, db, "public", "shapes", "shape_pt_lat", "shape_pt_lon", "shape_pt_loc")
	if err != nil {
		return nil, fmt.Errorf("introspect shapes columns: %w", err)
	}
	var q string
	switch {
	case cols["shape_pt_lat"] && cols["shape_pt_lon"]:
		q = `SELECT shape_pt_lat, shape_pt_lon FROM shapes WHERE shape_id = $1 ORDER BY shape_pt_sequence`
	case cols["shape_pt_loc"]:
		q = `SELECT ST_Y(shape_pt_loc::geometry), ST_X(shape_pt_loc::geometry)
             FROM shapes WHERE shape_id = $1 ORDER BY shape_pt_sequence`
	default:
		return nil, fmt.Errorf("shapes table missing expected columns (lat/lon or shape_pt_loc)")
	}
	rows, err := db.QueryContext(ctx, q, shapeID)
	if err != nil {
		return nil, fmt.Errorf("query shapes: %w", err)
	}
	defer rows.Close()
	var pts []transit.LatLng
	for rows.Next() {
		var p transit.LatLng
		if err := rows.Scan(&p.Lat, &p.Lng); err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, rows.Err()
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	q := `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	rows, err := db.QueryContext(ctx, q, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}

// parseDaySeconds parses HH:MM:SS possibly with hours >= 24.
func parseDaySeconds(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec := 0
	if len(parts) > 2 {
		sec, _ = strconv.Atoi(parts[2])
	}
	total := h*3600 + m*60 + sec
	if total < 0 {
		total = 0
	}
	return total
}

// parseDirection maps direction_id values (0/1, booleans or importer enums)
// to a direction. Anything unrecognised is outbound.
func parseDirection(s string) transit.Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "inbound", "opposite":
		return transit.Inbound
	default:
		return transit.Outbound
	}
}
