package httpapi

import (
	"net/http"

	"calibration-engine/internal/model"
	"calibration-engine/internal/modules/calibration/types"
	"calibration-engine/internal/utils"
)

const welcomeMessage = "Welcome to the Calibration Engine API!"

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	models []string
}

func NewHealthchecker(models model.Set) healthchecker {
	names := make([]string, 0, models.Len())
	for _, p := range models.Pollutants() {
		names = append(names, string(p))
	}
	return &healthcheckerImpl{models: names}
}

// Models are loaded before the listener opens, so a running process is healthy.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, types.Health{Status: "ok", Models: h.models})
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	utils.WriteText(w, http.StatusOK, welcomeMessage)
}

func registerHealthcheck(mux *http.ServeMux, models model.Set) {
	healthchecker := NewHealthchecker(models)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
