package common

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// PageParams is the limit/offset window shared by every list endpoint.
type PageParams struct {
	Limit  int
	Offset int
}

// ExtractPaginationParams reads the limit and offset query parameters,
// clamping the limit to the service maximum. Unparseable values fall
// back to the defaults rather than failing the request.
func ExtractPaginationParams(r *http.Request) PageParams {
	params := PageParams{Limit: defaultPageLimit}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			if v > maxPageLimit {
				v = maxPageLimit
			}
			params.Limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			params.Offset = v
		}
	}

	return params
}
