package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"calibration-engine/internal/db"
	"calibration-engine/internal/model"
	"calibration-engine/internal/modules/training/repository"
	"calibration-engine/internal/modules/training/types"
	"calibration-engine/internal/training"
)

type trainOptions struct {
	pollutant string
	csvPath   string
	outPath   string
	ledger    string
	seed      int64
	holdout   float64
	folds     int
}

func newTrainCommand() *cobra.Command {
	opts := &trainOptions{}
	defaults := training.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Compare regressors on a CSV and save the best as an artifact",
		Long: `Reads <pollutant>_ref, <pollutant>, temp and hum from a headered CSV,
cross-validates every candidate regressor, refits the best one and writes it
to --out. Rows with empty or unparsable values are skipped.

Examples:
  trainer train --pollutant pm2_5 --csv assets/merged.csv
  trainer train --pollutant pm10 --csv assets/merged.csv --out assets/model_pm10.json.gz --ledger ledger.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.pollutant, "pollutant", "", "pollutant to calibrate: pm2_5 or pm10")
	f.StringVar(&opts.csvPath, "csv", "assets/merged.csv", "training data")
	f.StringVar(&opts.outPath, "out", "", "artifact path (default assets/model_<pollutant>.json.gz)")
	f.StringVar(&opts.ledger, "ledger", "", "sqlite ledger to record the run in")
	f.Int64Var(&opts.seed, "seed", defaults.Seed, "shuffle seed")
	f.Float64Var(&opts.holdout, "holdout", defaults.Holdout, "fraction of rows held out for final scoring")
	f.IntVar(&opts.folds, "folds", defaults.Folds, "cross-validation folds")
	_ = cmd.MarkFlagRequired("pollutant")
	return cmd
}

func runTrain(ctx context.Context, out io.Writer, opts *trainOptions) error {
	p, err := model.ParsePollutant(opts.pollutant)
	if err != nil {
		return err
	}
	if opts.outPath == "" {
		opts.outPath = "assets/model_" + string(p) + ".json.gz"
	}

	ds, err := training.LoadCSV(opts.csvPath, p)
	if err != nil {
		return err
	}
	slog.Info("dataset loaded", "path", opts.csvPath, "pollutant", p, "rows", ds.Len(), "skipped", ds.Skipped)

	compareOpts := training.DefaultOptions()
	compareOpts.Seed = opts.seed
	compareOpts.Holdout = opts.holdout
	compareOpts.Folds = opts.folds

	start := time.Now()
	res, err := training.Compare(ctx, ds, compareOpts)
	if err != nil {
		return fmt.Errorf("compare models: %w", err)
	}
	slog.Info("comparison finished",
		"best", res.Best.Spec().Algorithm,
		"r2", res.Metrics.R2,
		"rmse", res.Metrics.RMSE,
		"duration", time.Since(start),
	)

	if err := printLeaderboard(out, res); err != nil {
		return err
	}

	trainedAt := time.Now().UTC()
	if err := model.SaveArtifact(opts.outPath, res.Artifact(trainedAt)); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	fmt.Fprintf(out, "\nsaved %s model to %s\n", res.Best.Spec().Algorithm, opts.outPath)

	if opts.ledger == "" {
		return nil
	}
	run, err := recordRun(ctx, opts, ds, res, trainedAt)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	fmt.Fprintf(out, "recorded run %s in %s\n", run.ID, opts.ledger)
	return nil
}

func printLeaderboard(out io.Writer, res training.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tALGORITHM\tCV_R2\tCV_RMSE\tNOTE")
	for i, e := range res.Leaderboard {
		if e.Err != nil {
			fmt.Fprintf(tw, "%d\t%s\t-\t-\t%v\n", i+1, e.Spec.Algorithm, e.Err)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%.4f\t\n", i+1, e.Spec.Algorithm, e.CVR2, e.CVRMSE)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nholdout (%d rows): rmse=%.4f mae=%.4f r2=%.4f\n",
		res.HoldoutRows, res.Metrics.RMSE, res.Metrics.MAE, res.Metrics.R2)
	return err
}

func recordRun(ctx context.Context, opts *trainOptions, ds training.Dataset, res training.Result, trainedAt time.Time) (types.Run, error) {
	conn, err := openLedger(ctx, opts.ledger)
	if err != nil {
		return types.Run{}, err
	}
	defer func() {
		if err := db.Close(conn); err != nil {
			slog.Error("ledger close", "error", err)
		}
	}()

	run := types.Run{
		Pollutant:    string(ds.Pollutant),
		Algorithm:    string(res.Best.Spec().Algorithm),
		CSVPath:      opts.csvPath,
		ArtifactPath: opts.outPath,
		Seed:         opts.seed,
		Holdout:      opts.holdout,
		Folds:        opts.folds,
		TrainRows:    res.TrainRows,
		HoldoutRows:  res.HoldoutRows,
		SkippedRows:  ds.Skipped,
		RMSE:         res.Metrics.RMSE,
		MAE:          res.Metrics.MAE,
		R2:           res.Metrics.R2,
		CVR2:         res.Metrics.CVR2,
		CVRMSE:       res.Metrics.CVRMSE,
		CreatedAt:    trainedAt,
	}
	for i, e := range res.Leaderboard {
		c := types.Candidate{Rank: i + 1, Algorithm: string(e.Spec.Algorithm)}
		if e.Err != nil {
			c.Error = e.Err.Error()
		} else {
			c.CVR2, c.CVRMSE = &e.CVR2, &e.CVRMSE
		}
		run.Candidates = append(run.Candidates, c)
	}
	return repository.NewRepository(conn).InsertRun(ctx, run)
}
