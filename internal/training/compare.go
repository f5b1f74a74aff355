package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"calibration-engine/internal/model"
)

type Options struct {
	Seed       int64
	Holdout    float64
	Folds      int
	Candidates []model.Spec
}

func DefaultOptions() Options {
	return Options{
		Seed:       123,
		Holdout:    0.3,
		Folds:      5,
		Candidates: model.Candidates,
	}
}

// Entry is one candidate's cross-validation outcome.
type Entry struct {
	Spec   model.Spec
	CVR2   float64
	CVRMSE float64
	Err    error
}

type Result struct {
	// Leaderboard is sorted best first; failed candidates come last.
	Leaderboard []Entry
	Best        *model.Regressor
	// Metrics holds holdout RMSE/MAE/R² and the winner's CV scores.
	Metrics     model.Metrics
	TrainRows   int
	HoldoutRows int
}

// Artifact packages the winning model for saving.
func (r Result) Artifact(trainedAt time.Time) model.Artifact {
	return r.Best.Artifact(r.Metrics, trainedAt, r.TrainRows)
}

// Compare cross-validates every candidate on the training split, refits the
// best one on the whole training split and scores it on the holdout. The
// outcome depends only on the data and opts.
func Compare(ctx context.Context, ds Dataset, opts Options) (Result, error) {
	if len(opts.Candidates) == 0 {
		return Result{}, errors.New("no candidates")
	}
	train, test, err := Split(ds, opts.Holdout, opts.Seed)
	if err != nil {
		return Result{}, err
	}
	folds, err := Folds(train.Len(), opts.Folds)
	if err != nil {
		return Result{}, err
	}

	entries := make([]Entry, len(opts.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, spec := range opts.Candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries[i] = crossValidate(train, folds, spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	sort.SliceStable(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if (ea.Err == nil) != (eb.Err == nil) {
			return ea.Err == nil
		}
		if ea.CVR2 != eb.CVR2 {
			return ea.CVR2 > eb.CVR2
		}
		return ea.CVRMSE < eb.CVRMSE
	})
	for _, e := range entries {
		if e.Err != nil {
			slog.Warn("candidate failed", "algorithm", e.Spec.Algorithm, "error", e.Err)
			continue
		}
		slog.Debug("candidate scored", "algorithm", e.Spec.Algorithm, "cv_r2", e.CVR2, "cv_rmse", e.CVRMSE)
	}

	best := entries[0]
	if best.Err != nil {
		return Result{}, fmt.Errorf("every candidate failed: %w", best.Err)
	}
	r, err := model.Fit(ds.Pollutant, best.Spec, train.X, train.Y)
	if err != nil {
		return Result{}, fmt.Errorf("refit %s: %w", best.Spec.Algorithm, err)
	}
	pred, err := r.Predict(test.X)
	if err != nil {
		return Result{}, fmt.Errorf("score holdout: %w", err)
	}
	rmse, mae, r2 := Score(test.Y, pred)

	return Result{
		Leaderboard: entries,
		Best:        r,
		Metrics: model.Metrics{
			RMSE:   rmse,
			MAE:    mae,
			R2:     r2,
			CVR2:   best.CVR2,
			CVRMSE: best.CVRMSE,
		},
		TrainRows:   train.Len(),
		HoldoutRows: test.Len(),
	}, nil
}

// crossValidate averages R² and RMSE of spec over the validation folds.
func crossValidate(train Dataset, folds [][]int, spec model.Spec) Entry {
	e := Entry{Spec: spec}
	for _, fold := range folds {
		fitSet := train.subset(complement(train.Len(), fold))
		valSet := train.subset(fold)

		r, err := model.Fit(train.Pollutant, spec, fitSet.X, fitSet.Y)
		if err != nil {
			e.Err = err
			return e
		}
		pred, err := r.Predict(valSet.X)
		if err != nil {
			e.Err = err
			return e
		}
		rmse, _, r2 := Score(valSet.Y, pred)
		e.CVR2 += r2
		e.CVRMSE += rmse
	}
	e.CVR2 /= float64(len(folds))
	e.CVRMSE /= float64(len(folds))
	return e
}
