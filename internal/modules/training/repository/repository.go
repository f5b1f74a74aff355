package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"calibration-engine/internal/modules/training/types"
)

//go:embed sql/insert-run.sql
var insertRunSQL string

//go:embed sql/insert-candidate.sql
var insertCandidateSQL string

//go:embed sql/list-runs.sql
var listRunsSQL string

//go:embed sql/get-run.sql
var getRunSQL string

//go:embed sql/get-candidates.sql
var getCandidatesSQL string

var ErrRunNotFound = errors.New("training run not found")

// createdAtLayout is fixed-width so created_at sorts correctly as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

type TrainingRepository interface {
	// InsertRun stores run and its candidates atomically. An empty ID is
	// replaced with a new uuid; a zero CreatedAt with the current time.
	InsertRun(ctx context.Context, run types.Run) (types.Run, error)
	// ListRuns returns the newest runs first, optionally for one pollutant.
	ListRuns(ctx context.Context, pollutant string, limit int) ([]types.Run, error)
	GetRun(ctx context.Context, id string) (types.Run, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) TrainingRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertRun(ctx context.Context, run types.Run) (types.Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Run{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, insertRunSQL,
		run.ID, run.Pollutant, run.Algorithm, run.CSVPath, run.ArtifactPath,
		run.Seed, run.Holdout, run.Folds, run.TrainRows, run.HoldoutRows, run.SkippedRows,
		run.RMSE, run.MAE, run.R2, run.CVR2, run.CVRMSE,
		run.CreatedAt.Format(createdAtLayout),
	)
	if err != nil {
		return types.Run{}, fmt.Errorf("insert run: %w", err)
	}

	for _, c := range run.Candidates {
		var errText any
		if c.Error != "" {
			errText = c.Error
		}
		if _, err := tx.ExecContext(ctx, insertCandidateSQL, run.ID, c.Rank, c.Algorithm, c.CVR2, c.CVRMSE, errText); err != nil {
			return types.Run{}, fmt.Errorf("insert candidate %s: %w", c.Algorithm, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Run{}, err
	}
	return run, nil
}

func (r *repositoryImpl) ListRuns(ctx context.Context, pollutant string, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, listRunsSQL, pollutant, pollutant, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close training runs rows", "error", err)
		}
	}()

	var out []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetRun(ctx context.Context, id string) (types.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, getRunSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return types.Run{}, err
	}

	rows, err := r.db.QueryContext(ctx, getCandidatesSQL, id)
	if err != nil {
		return types.Run{}, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close training candidates rows", "error", err)
		}
	}()
	for rows.Next() {
		var c types.Candidate
		var errText sql.NullString
		if err := rows.Scan(&c.Rank, &c.Algorithm, &c.CVR2, &c.CVRMSE, &errText); err != nil {
			return types.Run{}, err
		}
		c.Error = errText.String
		run.Candidates = append(run.Candidates, c)
	}
	return run, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (types.Run, error) {
	var run types.Run
	var created string
	err := s.Scan(
		&run.ID, &run.Pollutant, &run.Algorithm, &run.CSVPath, &run.ArtifactPath,
		&run.Seed, &run.Holdout, &run.Folds, &run.TrainRows, &run.HoldoutRows, &run.SkippedRows,
		&run.RMSE, &run.MAE, &run.R2, &run.CVR2, &run.CVRMSE, &created,
	)
	if err != nil {
		return types.Run{}, err
	}
	run.CreatedAt, err = time.Parse(createdAtLayout, created)
	if err != nil {
		return types.Run{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return run, nil
}
