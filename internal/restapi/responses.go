package restapi

import (
	"encoding/json"
	"net/http"
	"time"

	"transit-planner/internal/logging"
)

// ResponseModel is the envelope of every API response.
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text"`
	Data        any    `json:"data,omitempty"`
}

func responseCurrentTime() int64 { return time.Now().UnixMilli() }

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, data any) {
	api.writeJSON(w, http.StatusOK, ResponseModel{
		Code:        http.StatusOK,
		CurrentTime: responseCurrentTime(),
		Text:        "OK",
		Data:        data,
	})
}

func (api *RestAPI) errorResponse(w http.ResponseWriter, r *http.Request, status int, text string) {
	api.writeJSON(w, status, ResponseModel{
		Code:        status,
		CurrentTime: responseCurrentTime(),
		Text:        text,
	})
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	api.errorResponse(w, r, http.StatusNotFound, "resource not found")
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "request failed", err)
	api.errorResponse(w, r, http.StatusInternalServerError, "internal server error")
}

// validationErrorResponse sends a 400 Bad Request response with field-specific validation errors
func (api *RestAPI) validationErrorResponse(w http.ResponseWriter, r *http.Request, fieldErrors map[string][]string) {
	api.writeJSON(w, http.StatusBadRequest, struct {
		Code        int                 `json:"code"`
		CurrentTime int64               `json:"currentTime"`
		Text        string              `json:"text"`
		FieldErrors map[string][]string `json:"fieldErrors"`
	}{
		Code:        http.StatusBadRequest,
		CurrentTime: responseCurrentTime(),
		Text:        "invalid request",
		FieldErrors: fieldErrors,
	})
}

func (api *RestAPI) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.Logger.Error("failed to encode response", "error", err)
	}
}
