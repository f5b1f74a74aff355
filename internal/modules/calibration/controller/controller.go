package controller

import (
	"context"
	"net/http"
	"strings"

	"calibration-engine/internal/auth"
	"calibration-engine/internal/model"
	"calibration-engine/internal/modules/calibration/types"
)

type Calibrator interface {
	Pollutants() []model.Pollutant
	RequiredFields() []string
	Calibrate(ctx context.Context, batch types.Batch) ([]types.CalibratedRecord, error)
}

// Recorder counts accepted batches and failed requests. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveBatch(size int)
	ObserveError(kind string)
}

type CalibrationController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type Options struct {
	Credentials  auth.CredentialTable
	Realm        string
	PredictPath  string
	MaxBodyBytes int64
	Recorder     Recorder
}

type calibrationControllerImpl struct {
	service     Calibrator
	opts        Options
	instruction types.Instruction
}

func NewCalibrationController(service Calibrator, opts Options) CalibrationController {
	return &calibrationControllerImpl{
		service: service,
		opts:    opts,
		instruction: types.Instruction{
			Instruction: "Send JSON data with " + strings.Join(service.RequiredFields(), ", ") + " for calibration",
		},
	}
}

// RegisterRoutes mounts the predict path for GET and POST, both behind Basic auth.
// Other methods on the path get 405 from the mux.
func (c *calibrationControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	path := c.opts.PredictPath + "{$}"
	mux.Handle("GET "+path, auth.BasicAuth(c.opts.Credentials, c.opts.Realm, http.HandlerFunc(c.handleInstruction)))
	mux.Handle("POST "+path, auth.BasicAuth(c.opts.Credentials, c.opts.Realm, http.HandlerFunc(c.handlePredict)))
}
