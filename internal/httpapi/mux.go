package httpapi

import (
	"net/http"

	"calibration-engine/internal/metrics"
	"calibration-engine/internal/model"
)

// NewMux registers the unauthenticated routes. Feature modules add their own.
func NewMux(models model.Set, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleIndex)
	registerHealthcheck(mux, models)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	return mux
}
