package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	b, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestMetrics_Exposition(t *testing.T) {
	m := New()
	m.ObserveRequest("/calibration-engine-api/v1/", http.MethodPost, http.StatusOK)
	m.ObserveRequest("/calibration-engine-api/v1/", http.MethodPost, http.StatusOK)
	m.ObservePrediction("pm2_5", 3, 2*time.Millisecond)
	m.ObserveBatch(3)
	m.ObserveError("input")

	out := scrape(t, m)
	for _, want := range []string{
		`calibration_http_requests_total{method="POST",path="/calibration-engine-api/v1/",status="200"} 2`,
		`calibration_predictions_total{pollutant="pm2_5"} 3`,
		`calibration_prediction_errors_total{kind="input"} 1`,
		`calibration_batch_size_count 1`,
		`calibration_prediction_duration_seconds_count{pollutant="pm2_5"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.ObserveError("model")

	if strings.Contains(scrape(t, b), `kind="model"`) {
		t.Fatal("metrics leaked between instances")
	}
}
