package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-graph/pkg/observability"
)

func TestMetricsMiddlewareRecordsStatusPerRoute(t *testing.T) {
	metrics := observability.NewMetrics("test")

	router := chi.NewRouter()
	router.Use(Metrics(metrics))
	router.Get("/nodes/{nodeID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/nodes/n-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := scrape.Body.String()
	assert.Contains(t, body, `method="GET"`)
	assert.Contains(t, body, `route="/nodes/{nodeID}"`)
	assert.Contains(t, body, `status="418"`)
}
