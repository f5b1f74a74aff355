package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/cors"

	"calibration-engine/internal/config"
	"calibration-engine/internal/metrics"
)

func NewServer(cfg config.Config, mux *http.ServeMux, m *metrics.Metrics) *http.Server {
	var handler http.Handler = mux
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Content-Type", "Authorization", requestIDHeader},
			ExposedHeaders:   []string{requestIDHeader},
			AllowCredentials: true,
		}).Handler(handler)
	}

	var observer requestObserver
	if m != nil {
		observer = m
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(handler, observer),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
