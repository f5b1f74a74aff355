package controller

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"calibration-engine/internal/auth"
	"calibration-engine/internal/httpapi"
	"calibration-engine/internal/modules/calibration/service"
	"calibration-engine/internal/utils"
)

const msgPredictionFailed = "Prediction failed"

func (c *calibrationControllerImpl) handleInstruction(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.instruction)
}

func (c *calibrationControllerImpl) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.opts.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.writeError(w, r, &service.InputError{Status: http.StatusRequestEntityTooLarge, Message: service.MsgBodyTooLarge})
			return
		}
		c.writeError(w, r, &service.InputError{Status: http.StatusBadRequest, Message: "Failed to read request body"})
		return
	}

	batch, err := service.DecodeBatch(body)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	out, err := c.service.Calibrate(r.Context(), batch)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	if c.opts.Recorder != nil {
		c.opts.Recorder.ObserveBatch(len(batch))
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

// writeError maps a service error to its response. Prediction failures are
// logged in full and reported to the client without detail.
func (c *calibrationControllerImpl) writeError(w http.ResponseWriter, r *http.Request, err error) {
	user, _ := auth.UserFromContext(r.Context())
	requestID := httpapi.RequestIDFromContext(r.Context())

	var inErr *service.InputError
	if errors.As(err, &inErr) {
		c.observeError("input")
		slog.Info("calibration request rejected", "request_id", requestID, "user", user, "status", inErr.Status, "reason", inErr.Message)
		utils.WriteError(w, inErr.Status, inErr.Message)
		return
	}

	kind := service.KindModel
	var predErr *service.PredictionError
	if errors.As(err, &predErr) {
		kind = predErr.Kind
	}
	c.observeError(kind)
	slog.Error("calibration failed", "request_id", requestID, "user", user, "kind", kind, "error", err)
	utils.WriteError(w, http.StatusInternalServerError, msgPredictionFailed)
}

func (c *calibrationControllerImpl) observeError(kind string) {
	if c.opts.Recorder != nil {
		c.opts.Recorder.ObserveError(kind)
	}
}
