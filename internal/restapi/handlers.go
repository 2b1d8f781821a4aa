package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"transit-planner/internal/planner"
	"transit-planner/internal/routing"
	"transit-planner/internal/transit"
)

const (
	defaultNearRadius = 500.0
	maxNearRadius     = 5000.0
)

func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !api.Service.Ready() {
		api.errorResponse(w, r, http.StatusServiceUnavailable, "graph not built")
		return
	}
	api.sendResponse(w, r, map[string]string{"status": "ok"})
}

func (api *RestAPI) planHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fieldErrors := map[string][]string{}
	origin := parseLatLng(q, "fromLat", "fromLng", fieldErrors)
	destination := parseLatLng(q, "toLat", "toLng", fieldErrors)
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	it, err := api.Service.Plan(r.Context(), origin, destination)
	switch {
	case err == nil:
		api.sendResponse(w, r, it)
	case errors.Is(err, routing.ErrNoPath):
		api.errorResponse(w, r, http.StatusNotFound, "no route found, try adjusting your points")
	case errors.Is(err, context.DeadlineExceeded):
		api.errorResponse(w, r, http.StatusGatewayTimeout, "search timed out")
	default:
		api.serverErrorResponse(w, r, err)
	}
}

func (api *RestAPI) graphHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := api.Service.Stats()
	if !ok {
		api.errorResponse(w, r, http.StatusServiceUnavailable, "graph not built")
		return
	}
	api.sendResponse(w, r, newGraph(snap))
}

func (api *RestAPI) routesHandler(w http.ResponseWriter, r *http.Request) {
	routes, err := api.Service.Routes(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	out := make([]Route, 0, len(routes))
	for _, rt := range routes {
		out = append(out, newRoute(rt))
	}
	api.sendResponse(w, r, out)
}

func (api *RestAPI) etaHandler(w http.ResponseWriter, r *http.Request) {
	routeID := httprouter.ParamsFromContext(r.Context()).ByName("id")
	q := r.URL.Query()

	fieldErrors := map[string][]string{}
	direction := transit.Direction(q.Get("direction"))
	switch direction {
	case "":
		direction = transit.Outbound
	case transit.Outbound, transit.Inbound:
	default:
		fieldErrors["direction"] = []string{`Field "direction" must be "outbound" or "inbound".`}
	}
	stopID := q.Get("stopId")
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	res, err := api.Service.ETA(r.Context(), routeID, direction, stopID)
	if errors.Is(err, planner.ErrRouteNotFound) {
		api.sendNotFound(w, r)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, newETA(routeID, direction, stopID, res))
}

func (api *RestAPI) stopsNearHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fieldErrors := map[string][]string{}
	p := parseLatLng(q, "lat", "lng", fieldErrors)
	radius, ok := parseFloatParam(q, "radius", fieldErrors)
	if !ok {
		radius = defaultNearRadius
	}
	if radius <= 0 || radius > maxNearRadius {
		fieldErrors["radius"] = append(fieldErrors["radius"],
			fmt.Sprintf("Field %q must be in (0, %g].", "radius", maxNearRadius))
	}
	if len(fieldErrors) > 0 {
		api.validationErrorResponse(w, r, fieldErrors)
		return
	}

	near, err := api.Service.StopsNear(r.Context(), p, radius)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	out := make([]NearbyStop, 0, len(near))
	for _, ns := range near {
		out = append(out, NearbyStop{
			ID:             ns.Stop.ID,
			Name:           ns.Stop.Name,
			Lat:            ns.Stop.Lat,
			Lng:            ns.Stop.Lng,
			DistanceMeters: ns.DistanceMeters,
		})
	}
	api.sendResponse(w, r, out)
}

func fingerprintHex(f uint64) string { return strconv.FormatUint(f, 16) }
