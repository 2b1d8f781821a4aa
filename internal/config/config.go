package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"transit-planner/internal/logging"
	"transit-planner/internal/routing"
)

type Config struct {
	// DatabaseURL points at the cluster holding imported GTFS data. With City
	// set, the city's latest import database is resolved from it.
	DatabaseURL string `validate:"required_without=NetworkFile"`
	City        string
	// NetworkFile is a GTFS zip or a YAML network; it takes precedence over
	// the database.
	NetworkFile string `validate:"omitempty,endswith=.zip|endswith=.yaml|endswith=.yml"`
	// IncludeShapes attaches encoded shapes to journeys for map rendering.
	IncludeShapes bool

	HTTPAddr    string `validate:"required"`
	MetricsAddr string

	NATSURL           string
	NATSPlanSubject   string `validate:"required_with=NATSURL"`
	NATSEventsSubject string `validate:"required_with=NATSURL"`
	LogNATSSubjects   bool

	// GraphRefreshInterval of zero disables background rebuilds.
	GraphRefreshInterval time.Duration `validate:"gte=0"`
	SearchTimeout        time.Duration `validate:"gt=0"`

	LogLevel  slog.Level
	LogFormat string `validate:"oneof=json text"`
	Location  *time.Location `validate:"required"`

	Routing routing.Options
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		City:              firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME")),
		NetworkFile:       strings.TrimSpace(os.Getenv("NETWORK_FILE")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSPlanSubject:   getenvDefault("NATS_PLAN_SUBJECT", "transit.plan"),
		NATSEventsSubject: getenvDefault("NATS_EVENTS_SUBJECT", "transit.graph"),
		LogNATSSubjects:   parseBool(os.Getenv("LOG_NATS_SUBJECTS")),
		IncludeShapes:     parseBool(os.Getenv("INCLUDE_SHAPES")),
		LogFormat:         strings.ToLower(getenvDefault("LOG_FORMAT", "json")),
	}

	dsn, err := databaseURL(cfg.City)
	if err != nil {
		return nil, err
	}
	cfg.DatabaseURL = dsn

	refreshSec, err := intEnv("GRAPH_REFRESH_INTERVAL_SEC", 1800)
	if err != nil {
		return nil, err
	}
	cfg.GraphRefreshInterval = time.Duration(refreshSec) * time.Second

	timeoutMs, err := intEnv("SEARCH_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	cfg.SearchTimeout = time.Duration(timeoutMs) * time.Millisecond

	if cfg.LogLevel, err = logging.ParseLevel(os.Getenv("LOG_LEVEL")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %w", err)
		}
		cfg.Location = loc
	}

	// Unset tuning stays zero and falls back to the routing defaults.
	tuning := []struct {
		key string
		dst *float64
	}{
		{"MAX_WALKING_DISTANCE_M", &cfg.Routing.MaxWalkingDistanceMeters},
		{"WALKING_SPEED_MPS", &cfg.Routing.WalkingSpeedMPS},
		{"BUS_SPEED_MPS", &cfg.Routing.BusSpeedMPS},
	}
	for _, t := range tuning {
		if *t.dst, err = floatEnv(t.key); err != nil {
			return nil, err
		}
	}
	penalties := []struct {
		key string
		dst *float64
	}{
		{"BOARDING_PENALTY_SEC", &cfg.Routing.BoardingPenaltySeconds},
		{"TRANSFER_PENALTY_SEC", &cfg.Routing.TransferPenaltySeconds},
		{"WRONG_DIRECTION_PENALTY_SEC", &cfg.Routing.WrongDirectionPenaltySeconds},
	}
	for _, p := range penalties {
		if *p.dst, err = penaltyEnv(p.key); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values against the struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
// It returns "" when nothing database related is set.
func databaseURL(city string) (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	db := os.Getenv("PGDATABASE")
	// With CITY the base DB only serves the import lookup.
	if db == "" && city != "" {
		db = "postgres"
	}
	if db == "" {
		if os.Getenv("PGHOST") != "" {
			return "", fmt.Errorf("PGHOST is set but PGDATABASE is not (set PGDATABASE=postgres when using CITY)")
		}
		return "", nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func floatEnv(k string) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

// penaltyEnv is like floatEnv but accepts 0, which turns the penalty off.
func penaltyEnv(k string) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	if f == 0 {
		return routing.NoPenalty, nil
	}
	return f, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
