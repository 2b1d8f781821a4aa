package restapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"transit-planner/internal/eta"
	"transit-planner/internal/logging"
	"transit-planner/internal/planner"
	"transit-planner/internal/routing"
	"transit-planner/internal/transit"
)

// Service is the part of the planner the HTTP API needs.
type Service interface {
	Ready() bool
	Stats() (planner.Snapshot, bool)
	Plan(ctx context.Context, origin, destination transit.LatLng) (*routing.Itinerary, error)
	ETA(ctx context.Context, routeID string, direction transit.Direction, stopID string) (eta.Result, error)
	Routes(ctx context.Context) ([]transit.Route, error)
	StopsNear(ctx context.Context, p transit.LatLng, radius float64) ([]planner.NearbyStop, error)
}

type RestAPI struct {
	Service Service
	Logger  *slog.Logger
}

func NewRestAPI(svc Service, logger *slog.Logger) *RestAPI {
	return &RestAPI{Service: svc, Logger: logging.OrDiscard(logger)}
}

// Routes returns the API handler with request logging applied.
func (api *RestAPI) Routes() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/healthz", api.healthHandler)
	router.HandlerFunc(http.MethodGet, "/api/plan", api.planHandler)
	router.HandlerFunc(http.MethodGet, "/api/graph", api.graphHandler)
	router.HandlerFunc(http.MethodGet, "/api/routes", api.routesHandler)
	router.HandlerFunc(http.MethodGet, "/api/routes/:id/eta", api.etaHandler)
	router.HandlerFunc(http.MethodGet, "/api/stops/near", api.stopsNearHandler)
	router.NotFound = http.HandlerFunc(api.sendNotFound)

	return NewRequestLoggingMiddleware(api.Logger)(router)
}
