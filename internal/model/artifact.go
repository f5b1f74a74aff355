package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// FormatVersion is bumped whenever the artifact layout changes incompatibly.
const FormatVersion = 1

var ErrInvalidArtifact = errors.New("invalid model artifact")

// Metrics are the validation scores recorded by the trainer.
type Metrics struct {
	RMSE   float64 `json:"rmse"`
	MAE    float64 `json:"mae"`
	R2     float64 `json:"r2"`
	CVR2   float64 `json:"cv_r2"`
	CVRMSE float64 `json:"cv_rmse"`
}

// Artifact is the serialized form of a Regressor.
type Artifact struct {
	FormatVersion int       `json:"format_version"`
	Pollutant     Pollutant `json:"pollutant"`
	Algorithm     Algorithm `json:"algorithm"`
	Features      []string  `json:"features"`
	Degree        int       `json:"degree"`
	Lambda        float64   `json:"lambda"`
	Mean          []float64 `json:"mean"`
	Scale         []float64 `json:"scale"`
	Coefficients  []float64 `json:"coefficients"`
	Intercept     float64   `json:"intercept"`
	Metrics       Metrics   `json:"metrics"`
	TrainedAt     time.Time `json:"trained_at"`
	Rows          int       `json:"rows"`
}

// Artifact snapshots the regressor together with training metadata.
func (r *Regressor) Artifact(metrics Metrics, trainedAt time.Time, rows int) Artifact {
	return Artifact{
		FormatVersion: FormatVersion,
		Pollutant:     r.pollutant,
		Algorithm:     r.spec.Algorithm,
		Features:      r.pollutant.FeatureNames(),
		Degree:        r.spec.Degree,
		Lambda:        r.spec.Lambda,
		Mean:          append([]float64(nil), r.mean...),
		Scale:         append([]float64(nil), r.scale...),
		Coefficients:  append([]float64(nil), r.coef...),
		Intercept:     r.intercept,
		Metrics:       metrics,
		TrainedAt:     trainedAt.UTC(),
		Rows:          rows,
	}
}

// Regressor rebuilds a predictor after checking the artifact is internally consistent.
func (a Artifact) Regressor() (*Regressor, error) {
	if a.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d (want %d)", ErrInvalidArtifact, a.FormatVersion, FormatVersion)
	}
	p, err := ParsePollutant(string(a.Pollutant))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	want := p.FeatureNames()
	if len(a.Features) != len(want) {
		return nil, fmt.Errorf("%w: features %v (want %v)", ErrInvalidArtifact, a.Features, want)
	}
	for i := range want {
		if a.Features[i] != want[i] {
			return nil, fmt.Errorf("%w: features %v (want %v)", ErrInvalidArtifact, a.Features, want)
		}
	}
	spec := Spec{Algorithm: a.Algorithm, Degree: a.Degree, Lambda: a.Lambda}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	w := expandedWidth(a.Degree)
	if len(a.Coefficients) != w || len(a.Mean) != w || len(a.Scale) != w {
		return nil, fmt.Errorf("%w: expected %d terms, got coefficients=%d mean=%d scale=%d",
			ErrInvalidArtifact, w, len(a.Coefficients), len(a.Mean), len(a.Scale))
	}
	for i := 0; i < w; i++ {
		if !finite(a.Coefficients[i]) || !finite(a.Mean[i]) || !finite(a.Scale[i]) || a.Scale[i] == 0 {
			return nil, fmt.Errorf("%w: term %d is not usable", ErrInvalidArtifact, i)
		}
	}
	if !finite(a.Intercept) {
		return nil, fmt.Errorf("%w: intercept is not finite", ErrInvalidArtifact)
	}

	return &Regressor{
		pollutant: p,
		spec:      spec,
		mean:      append([]float64(nil), a.Mean...),
		scale:     append([]float64(nil), a.Scale...),
		coef:      append([]float64(nil), a.Coefficients...),
		intercept: a.Intercept,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// WriteArtifact encodes a as gzip-compressed JSON.
func WriteArtifact(w io.Writer, a Artifact) error {
	zw := gzip.NewWriter(w)
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress artifact: %w", err)
	}
	return nil
}

// ReadArtifact decodes a gzip-compressed JSON artifact without validating it.
func ReadArtifact(r io.Reader) (Artifact, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: decompress: %v", ErrInvalidArtifact, err)
	}
	defer func() { _ = zr.Close() }()

	var a Artifact
	dec := json.NewDecoder(zr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return Artifact{}, fmt.Errorf("%w: decode: %v", ErrInvalidArtifact, err)
	}
	return a, nil
}

// SaveArtifact writes a to path atomically (temp file + rename).
func SaveArtifact(path string, a Artifact) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := WriteArtifact(tmp, a); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// OpenArtifact reads the artifact file at path.
func OpenArtifact(path string) (Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadArtifact(f)
}

// LoadArtifact reads and validates the artifact at path.
func LoadArtifact(path string) (*Regressor, Artifact, error) {
	a, err := OpenArtifact(path)
	if err != nil {
		return nil, Artifact{}, err
	}
	r, err := a.Regressor()
	if err != nil {
		return nil, Artifact{}, err
	}
	return r, a, nil
}
