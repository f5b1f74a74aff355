package types

import "time"

// Run is one trainer invocation recorded in the ledger.
type Run struct {
	ID           string      `json:"id"`
	Pollutant    string      `json:"pollutant"`
	Algorithm    string      `json:"algorithm"`
	CSVPath      string      `json:"csv_path"`
	ArtifactPath string      `json:"artifact_path"`
	Seed         int64       `json:"seed"`
	Holdout      float64     `json:"holdout"`
	Folds        int         `json:"folds"`
	TrainRows    int         `json:"train_rows"`
	HoldoutRows  int         `json:"holdout_rows"`
	SkippedRows  int         `json:"skipped_rows"`
	RMSE         float64     `json:"rmse"`
	MAE          float64     `json:"mae"`
	R2           float64     `json:"r2"`
	CVR2         float64     `json:"cv_r2"`
	CVRMSE       float64     `json:"cv_rmse"`
	CreatedAt    time.Time   `json:"created_at"`
	Candidates   []Candidate `json:"candidates,omitempty"`
}

// Candidate is one leaderboard row of a run; Rank starts at 1.
type Candidate struct {
	Rank      int      `json:"rank"`
	Algorithm string   `json:"algorithm"`
	CVR2      *float64 `json:"cv_r2,omitempty"`
	CVRMSE    *float64 `json:"cv_rmse,omitempty"`
	Error     string   `json:"error,omitempty"`
}
