package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"calibration-engine/internal/model"
	"calibration-engine/internal/modules/calibration/types"
)

// Observer receives per-model timings. *metrics.Metrics satisfies it.
type Observer interface {
	ObservePrediction(pollutant string, records int, d time.Duration)
}

type Service struct {
	models   model.Set
	required []string
	observer Observer
}

func NewService(models model.Set, observer Observer) *Service {
	return &Service{
		models:   models,
		required: RequiredFields(models.Pollutants()),
		observer: observer,
	}
}

func (s *Service) Pollutants() []model.Pollutant { return s.models.Pollutants() }

func (s *Service) RequiredFields() []string { return s.required }

// Calibrate validates the whole batch, then calls each active model exactly
// once with every record's features. The output has one entry per input
// record in input order.
func (s *Service) Calibrate(ctx context.Context, batch types.Batch) ([]types.CalibratedRecord, error) {
	if err := Validate(batch, s.required); err != nil {
		return nil, err
	}

	corrected := make(map[model.Pollutant][]float64, s.models.Len())
	for _, p := range s.models.Pollutants() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := extractFeatures(batch, p)
		if err != nil {
			return nil, err
		}
		predictor, _ := s.models.Get(p)

		start := time.Now()
		out, err := predictor.Predict(rows)
		if err != nil {
			return nil, &PredictionError{Kind: KindModel, Pollutant: string(p), Record: -1, Err: err}
		}
		if len(out) != len(rows) {
			return nil, &PredictionError{
				Kind:      KindModel,
				Pollutant: string(p),
				Record:    -1,
				Err:       fmt.Errorf("model returned %d values for %d records", len(out), len(rows)),
			}
		}
		elapsed := time.Since(start)
		if s.observer != nil {
			s.observer.ObservePrediction(string(p), len(rows), elapsed)
		}
		slog.Debug("model applied", "pollutant", p, "records", len(rows), "duration", elapsed)
		corrected[p] = out
	}

	result := make([]types.CalibratedRecord, len(batch))
	for i, rec := range batch {
		outRec := make(types.CalibratedRecord, len(rec))
		for k, v := range rec {
			outRec[k] = v
		}
		for p, values := range corrected {
			outRec[string(p)] = values[i]
		}
		result[i] = outRec
	}
	return result, nil
}
