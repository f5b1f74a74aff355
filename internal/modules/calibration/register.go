package calibration

import (
	"net/http"

	"calibration-engine/internal/metrics"
	"calibration-engine/internal/model"
	"calibration-engine/internal/modules/calibration/controller"
	"calibration-engine/internal/modules/calibration/service"
)

func RegisterFeature(mux *http.ServeMux, models model.Set, m *metrics.Metrics, opts controller.Options) {
	var observer service.Observer
	if m != nil {
		observer = m
		opts.Recorder = m
	}
	calibrationService := service.NewService(models, observer)
	calibrationController := controller.NewCalibrationController(calibrationService, opts)
	calibrationController.RegisterRoutes(mux)
}
