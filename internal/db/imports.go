package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"transit-planner/internal/logging"
)

// ErrNoImport means no successful import matches the requested city.
var ErrNoImport = errors.New("no imported database for city")

// ResolveLatestImportDBName returns the db_name with the most recent imported_at
// from public.latest_successful_imports where db_name ILIKE '%city%'.
func ResolveLatestImportDBName(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var dbName sql.NullString
	if err := meta.QueryRowContext(ctx, q, city).Scan(&dbName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w %q", ErrNoImport, city)
		}
		return "", fmt.Errorf("resolve import for %q: %w", city, err)
	}
	if !dbName.Valid || dbName.String == "" {
		return "", fmt.Errorf("%w %q (empty db_name)", ErrNoImport, city)
	}
	return dbName.String, nil
}

// OpenForCity opens the database holding the city's latest GTFS import. The
// cluster DSN is only used for the lookup. An empty city opens dsn directly.
func OpenForCity(ctx context.Context, dsn, city string, logger *slog.Logger) (*sql.DB, error) {
	if strings.TrimSpace(city) == "" {
		db, err := Open(dsn)
		if err != nil {
			return nil, err
		}
		if err := Ping(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return db, nil
	}

	baseDSN, err := WithDBName(dsn, "postgres")
	if err != nil {
		return nil, fmt.Errorf("build base DSN: %w", err)
	}
	meta, err := Open(baseDSN)
	if err != nil {
		return nil, fmt.Errorf("open base database: %w", err)
	}
	defer logging.SafeCloseWithLogging(meta, logger, "close_meta_db")
	if err := Ping(ctx, meta); err != nil {
		return nil, fmt.Errorf("ping base database: %w", err)
	}

	name, err := ResolveLatestImportDBName(ctx, meta, city)
	if err != nil {
		return nil, err
	}
	cityDSN, err := WithDBName(dsn, name)
	if err != nil {
		return nil, fmt.Errorf("build city DSN: %w", err)
	}
	db, err := Open(cityDSN)
	if err != nil {
		return nil, err
	}
	if err := Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping city database %s: %w", name, err)
	}
	logging.OrDiscard(logger).Info("using city database", slog.String("city", city), slog.String("db_name", name))
	return db, nil
}
