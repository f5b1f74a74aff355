package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"calibration-engine/internal/model"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("dev")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeCSV writes rows where pm2_5_ref = 0.7*pm2_5 - 0.05*hum + 2 and
// pm10_ref = 0.9*pm10 + 1, with one unusable row.
func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,pm2_5_ref,pm10_ref,pm2_5,pm10,temp,hum\n")
	for i := range 80 {
		raw := 5 + float64(i%23)*2.5
		hum := 35 + float64(i%11)*4
		temp := 12 + float64(i%7)*1.5
		pm10 := raw * 1.6
		fmt.Fprintf(&b, "2024-05-%02d,%.4f,%.4f,%.4f,%.4f,%.2f,%.2f\n",
			1+i%28, 0.7*raw-0.05*hum+2, 0.9*pm10+1, raw, pm10, temp, hum)
	}
	b.WriteString("2024-05-30,,,,,,\n")
	path := filepath.Join(dir, "merged.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestTrainInspectAndRuns(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir)
	artifact := filepath.Join(dir, "out", "model_pm2_5.json.gz")
	ledger := filepath.Join(dir, "ledger.db")

	out, err := execute(t, "", "train", "--pollutant", "pm2_5", "--csv", csvPath, "--out", artifact, "--ledger", ledger)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	for _, want := range []string{"RANK", "linear", "poly2_ridge", "holdout (24 rows)", "saved", "recorded run"} {
		if !strings.Contains(out, want) {
			t.Errorf("train output missing %q:\n%s", want, out)
		}
	}

	r, a, err := model.LoadArtifact(artifact)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if a.Pollutant != model.PM25 || a.Rows != 56 || a.Metrics.R2 < 0.99 {
		t.Errorf("artifact = %+v", a)
	}
	pred, err := r.Predict([]model.Features{{50, 20, 10}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if want := 0.7*10 - 0.05*50 + 2; pred[0] < want-0.1 || pred[0] > want+0.1 {
		t.Errorf("prediction = %v, want about %v", pred[0], want)
	}

	out, err = execute(t, "", "inspect", artifact)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var inspected model.Artifact
	if err := json.Unmarshal([]byte(out), &inspected); err != nil {
		t.Fatalf("inspect output: %v\n%s", err, out)
	}
	if inspected.Algorithm != a.Algorithm || inspected.FormatVersion != model.FormatVersion {
		t.Errorf("inspect = %+v", inspected)
	}

	if _, err := execute(t, "", "train", "--pollutant", "pm10", "--csv", csvPath, "--out", filepath.Join(dir, "m10.json.gz"), "--ledger", ledger); err != nil {
		t.Fatalf("train pm10: %v", err)
	}

	out, err = execute(t, "", "runs", "--ledger", ledger, "--json")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var runs []struct {
		ID          string `json:"id"`
		Pollutant   string `json:"pollutant"`
		SkippedRows int    `json:"skipped_rows"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("runs output: %v\n%s", err, out)
	}
	if len(runs) != 2 || runs[0].Pollutant != "pm10" || runs[1].Pollutant != "pm2_5" {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[1].SkippedRows != 1 {
		t.Errorf("skipped = %d, want 1", runs[1].SkippedRows)
	}

	out, err = execute(t, "", "runs", "--ledger", ledger, "--pollutant", "pm2_5")
	if err != nil {
		t.Fatalf("runs table: %v", err)
	}
	if !strings.Contains(out, runs[1].ID) || strings.Contains(out, runs[0].ID) {
		t.Errorf("filtered table:\n%s", out)
	}

	out, err = execute(t, "", "runs", "show", runs[1].ID, "--ledger", ledger)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if strings.Count(out, `"rank"`) != len(model.Candidates) {
		t.Errorf("runs show output:\n%s", out)
	}
}

func TestTrain_Errors(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing pollutant", args: []string{"train", "--csv", csvPath}},
		{name: "unknown pollutant", args: []string{"train", "--pollutant", "o3", "--csv", csvPath}},
		{name: "missing csv", args: []string{"train", "--pollutant", "pm2_5", "--csv", filepath.Join(dir, "nope.csv")}},
		{name: "bad holdout", args: []string{"train", "--pollutant", "pm2_5", "--csv", csvPath, "--out", filepath.Join(dir, "x.gz"), "--holdout", "1.5"}},
		{name: "bad log level", args: []string{"--log-level", "loud", "train", "--pollutant", "pm2_5", "--csv", csvPath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, "", tt.args...); err == nil {
				t.Fatal("error = nil, want non-nil")
			}
		})
	}
}

func TestRuns_MissingLedger(t *testing.T) {
	ledger := filepath.Join(t.TempDir(), "absent.db")
	if _, err := execute(t, "", "runs", "--ledger", ledger); err == nil {
		t.Fatal("error = nil, want non-nil")
	}
	if _, err := os.Stat(ledger); !os.IsNotExist(err) {
		t.Fatalf("runs created the ledger file (stat err = %v)", err)
	}
}

func TestInspect_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json.gz")
	if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := execute(t, "", "inspect", path); err == nil {
		t.Fatal("error = nil, want non-nil")
	}
}

func TestHashPassword(t *testing.T) {
	cost := fmt.Sprint(bcrypt.MinCost)

	out, err := execute(t, "s3cret\n", "hash-password", "--cost", cost)
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}

	out, err = execute(t, "s3cret", "hash-password", "--cost", cost, "--user", "sensor-01")
	if err != nil {
		t.Fatalf("hash-password --user: %v", err)
	}
	if !strings.HasPrefix(out, "sensor-01:$2a$") {
		t.Fatalf("output = %q", out)
	}

	if _, err := execute(t, "", "hash-password", "--cost", cost); err == nil {
		t.Fatal("empty stdin error = nil, want non-nil")
	}
	if _, err := execute(t, "pw", "hash-password", "--cost", cost, "--user", "a:b"); err == nil {
		t.Fatal("invalid user error = nil, want non-nil")
	}
}
