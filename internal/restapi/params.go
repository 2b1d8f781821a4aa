package restapi

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"

	"transit-planner/internal/transit"
)

// parseFloatParam reads an optional float query parameter, recording a field
// error when it is present but malformed.
func parseFloatParam(params url.Values, key string, fieldErrors map[string][]string) (float64, bool) {
	val := params.Get(key)
	if val == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		fieldErrors[key] = append(fieldErrors[key], fmt.Sprintf("Invalid field value for field %q.", key))
		return 0, false
	}
	return f, true
}

func requireFloatParam(params url.Values, key string, fieldErrors map[string][]string) float64 {
	if params.Get(key) == "" {
		fieldErrors[key] = append(fieldErrors[key], fmt.Sprintf("Missing required field %q.", key))
		return 0
	}
	f, _ := parseFloatParam(params, key, fieldErrors)
	return f
}

// parseLatLng reads a coordinate pair and range-checks it.
func parseLatLng(params url.Values, latKey, lngKey string, fieldErrors map[string][]string) transit.LatLng {
	p := transit.LatLng{
		Lat: requireFloatParam(params, latKey, fieldErrors),
		Lng: requireFloatParam(params, lngKey, fieldErrors),
	}
	if len(fieldErrors[latKey]) > 0 || len(fieldErrors[lngKey]) > 0 {
		return p
	}
	var verrs validator.ValidationErrors
	if err := transit.Validator().Struct(p); errors.As(err, &verrs) {
		for _, fe := range verrs {
			key := latKey
			if fe.Field() == "Lng" {
				key = lngKey
			}
			fieldErrors[key] = append(fieldErrors[key], fmt.Sprintf("Field %q is out of range.", key))
		}
	}
	return p
}
