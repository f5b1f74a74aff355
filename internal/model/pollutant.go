// Package model holds the calibration regressors, their on-disk artifact
// format and the startup loader that turns artifacts into predictors.
package model

import (
	"fmt"
	"strings"
)

// Pollutant identifies a model slot and the record field it corrects.
type Pollutant string

const (
	PM25 Pollutant = "pm2_5"
	PM10 Pollutant = "pm10"
)

// Pollutants lists every supported slot in the order models are applied.
var Pollutants = []Pollutant{PM25, PM10}

// Feature field names shared by every model.
const (
	FieldHumidity    = "hum"
	FieldTemperature = "temp"
)

func ParsePollutant(s string) (Pollutant, error) {
	switch Pollutant(strings.ToLower(strings.TrimSpace(s))) {
	case PM25:
		return PM25, nil
	case PM10:
		return PM10, nil
	default:
		return "", fmt.Errorf("unknown pollutant %q (allowed: pm2_5, pm10)", s)
	}
}

// FeatureNames returns the model input columns in order: hum, temp, raw reading.
func (p Pollutant) FeatureNames() []string {
	return []string{FieldHumidity, FieldTemperature, string(p)}
}

// Features is one model input row: humidity, temperature, raw pollutant reading.
type Features [3]float64

// Predictor maps feature rows to corrected readings, one output per row, same order.
type Predictor interface {
	Predict(rows []Features) ([]float64, error)
}
