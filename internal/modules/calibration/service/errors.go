package service

import (
	"fmt"
	"net/http"
)

// Input error messages returned to clients verbatim.
const (
	MsgNoData            = "No data provided"
	MsgUnsupportedFormat = "Unsupported format"
	MsgBodyTooLarge      = "Request body too large"
)

// InputError is a client mistake detected before any model runs.
type InputError struct {
	Status  int
	Message string
}

func (e *InputError) Error() string { return e.Message }

func badRequest(format string, args ...any) *InputError {
	return &InputError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Prediction error kinds.
const (
	KindFeature = "feature"
	KindModel   = "model"
)

// PredictionError is a failure while extracting features or running a model.
// Its text is for logs only; clients get an opaque message.
type PredictionError struct {
	Kind      string
	Pollutant string
	Record    int
	Err       error
}

func (e *PredictionError) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("%s error (%s, record %d): %v", e.Kind, e.Pollutant, e.Record, e.Err)
	}
	return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Pollutant, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }
