package model

import (
	"fmt"
	"log/slog"
)

// Set is the immutable collection of predictors the service was started with.
type Set struct {
	predictors map[Pollutant]Predictor
	order      []Pollutant
}

// NewSet builds a Set; slots are ordered as in Pollutants.
func NewSet(predictors map[Pollutant]Predictor) Set {
	s := Set{predictors: make(map[Pollutant]Predictor, len(predictors))}
	for _, p := range Pollutants {
		if pr, ok := predictors[p]; ok && pr != nil {
			s.predictors[p] = pr
			s.order = append(s.order, p)
		}
	}
	return s
}

// Pollutants returns the active slots in application order.
func (s Set) Pollutants() []Pollutant {
	return append([]Pollutant(nil), s.order...)
}

func (s Set) Get(p Pollutant) (Predictor, bool) {
	pr, ok := s.predictors[p]
	return pr, ok
}

func (s Set) Len() int { return len(s.order) }

// LoadSet loads one artifact per configured slot. Empty paths are skipped.
// Any failure aborts loading; the caller is expected to stop the process.
func LoadSet(paths map[Pollutant]string, logger *slog.Logger) (Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loaded := make(map[Pollutant]Predictor, len(paths))
	for _, p := range Pollutants {
		path := paths[p]
		if path == "" {
			continue
		}
		r, a, err := LoadArtifact(path)
		if err != nil {
			return Set{}, fmt.Errorf("load %s model from %s: %w", p, path, err)
		}
		if a.Pollutant != p {
			return Set{}, fmt.Errorf("load %s model from %s: %w: artifact is for %s", p, path, ErrInvalidArtifact, a.Pollutant)
		}
		logger.Info("model loaded",
			"pollutant", p,
			"path", path,
			"algorithm", a.Algorithm,
			"trained_at", a.TrainedAt,
			"rows", a.Rows,
			"r2", a.Metrics.R2,
			"rmse", a.Metrics.RMSE,
		)
		loaded[p] = r
	}
	if len(loaded) == 0 {
		return Set{}, fmt.Errorf("no model paths configured")
	}
	return NewSet(loaded), nil
}
