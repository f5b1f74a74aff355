package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Algorithm names a regressor family stored in artifacts.
type Algorithm string

const (
	Linear     Algorithm = "linear"
	Ridge      Algorithm = "ridge"
	Poly2      Algorithm = "poly2"
	Poly2Ridge Algorithm = "poly2_ridge"
)

// lambdaFloor keeps the normal equations solvable when a feature is constant.
const lambdaFloor = 1e-9

// Spec describes one candidate regressor.
type Spec struct {
	Algorithm Algorithm
	Degree    int
	Lambda    float64
}

// Candidates is the fixed set compared by the trainer.
var Candidates = []Spec{
	{Algorithm: Linear, Degree: 1, Lambda: 0},
	{Algorithm: Ridge, Degree: 1, Lambda: 1},
	{Algorithm: Poly2, Degree: 2, Lambda: 0},
	{Algorithm: Poly2Ridge, Degree: 2, Lambda: 1},
}

func (s Spec) validate() error {
	if s.Degree != 1 && s.Degree != 2 {
		return fmt.Errorf("unsupported degree %d", s.Degree)
	}
	if s.Lambda < 0 || math.IsNaN(s.Lambda) || math.IsInf(s.Lambda, 0) {
		return fmt.Errorf("invalid lambda %v", s.Lambda)
	}
	return nil
}

// expandedWidth is the number of model terms produced by expand for a degree.
func expandedWidth(degree int) int {
	if degree == 2 {
		return 9
	}
	return 3
}

// expand returns the regression terms of a row. Degree 2 adds squares and
// pairwise products after the three raw features.
func expand(row Features, degree int) []float64 {
	h, t, p := row[0], row[1], row[2]
	if degree == 2 {
		return []float64{h, t, p, h * h, t * t, p * p, h * t, h * p, t * p}
	}
	return []float64{h, t, p}
}

// Regressor is a fitted linear model over standardized polynomial terms.
// It is immutable once built and safe for concurrent Predict calls.
type Regressor struct {
	pollutant Pollutant
	spec      Spec
	mean      []float64
	scale     []float64
	coef      []float64
	intercept float64
}

var _ Predictor = (*Regressor)(nil)

func (r *Regressor) Pollutant() Pollutant { return r.pollutant }
func (r *Regressor) Spec() Spec           { return r.spec }

// Fit trains spec on rows x with targets y.
func Fit(pollutant Pollutant, spec Spec, x []Features, y []float64) (*Regressor, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("fit: %d rows but %d targets", len(x), len(y))
	}
	n := len(x)
	if n < 2 {
		return nil, fmt.Errorf("fit: need at least 2 rows, got %d", n)
	}
	w := expandedWidth(spec.Degree)

	terms := make([][]float64, n)
	mean := make([]float64, w)
	for i, row := range x {
		terms[i] = expand(row, spec.Degree)
		for j, v := range terms[i] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("fit: row %d has a non-finite feature", i)
			}
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	scale := make([]float64, w)
	for _, t := range terms {
		for j, v := range t {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / float64(n))
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	var ymean float64
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("fit: target %d is not finite", i)
		}
		ymean += v
	}
	ymean /= float64(n)

	lambda := math.Max(spec.Lambda, lambdaFloor)
	// Ridge is solved as least squares on the design matrix stacked over sqrt(lambda)*I.
	a := mat.NewDense(n+w, w, nil)
	b := mat.NewVecDense(n+w, nil)
	for i, t := range terms {
		for j, v := range t {
			a.Set(i, j, (v-mean[j])/scale[j])
		}
		b.SetVec(i, y[i]-ymean)
	}
	sq := math.Sqrt(lambda)
	for j := 0; j < w; j++ {
		a.Set(n+j, j, sq)
	}

	var beta mat.VecDense
	err := beta.SolveVec(a, b)
	var cond mat.Condition
	switch {
	case errors.As(err, &cond):
		slog.Debug("ill-conditioned fit", "pollutant", pollutant, "algorithm", spec.Algorithm, "rows", n, "condition", float64(cond))
	case err != nil:
		return nil, fmt.Errorf("fit %s: %w", spec.Algorithm, err)
	case slog.Default().Enabled(context.Background(), slog.LevelDebug):
		slog.Debug("regressor fitted", "pollutant", pollutant, "algorithm", spec.Algorithm, "rows", n, "condition", mat.Cond(a, 2))
	}

	coef := make([]float64, w)
	for j := range coef {
		coef[j] = beta.AtVec(j)
		if math.IsNaN(coef[j]) || math.IsInf(coef[j], 0) {
			return nil, fmt.Errorf("fit %s: non-finite coefficient", spec.Algorithm)
		}
	}

	return &Regressor{
		pollutant: pollutant,
		spec:      spec,
		mean:      mean,
		scale:     scale,
		coef:      coef,
		intercept: ymean,
	}, nil
}

// Predict returns one corrected value per row. Any non-finite input or output fails the whole call.
func (r *Regressor) Predict(rows []Features) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d: non-finite feature", i)
			}
		}
		terms := expand(row, r.spec.Degree)
		v := r.intercept
		for j, t := range terms {
			v += r.coef[j] * (t - r.mean[j]) / r.scale[j]
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("row %d: prediction is not finite", i)
		}
		out[i] = v
	}
	return out, nil
}
