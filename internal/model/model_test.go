package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

func linearData(n int) ([]Features, []float64) {
	x := make([]Features, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		h := 30 + float64(i%40)
		t := 10 + float64((i*7)%25)
		p := 5 + float64((i*13)%60)
		x[i] = Features{h, t, p}
		y[i] = 2*h + 0.5*t + 1.1*p + 3
	}
	return x, y
}

func quadraticData(n int) ([]Features, []float64) {
	x := make([]Features, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		h := 30 + float64(i%40)
		t := 10 + float64((i*7)%25)
		p := 5 + float64((i*13)%60)
		x[i] = Features{h, t, p}
		y[i] = 0.01*h*p + 0.02*p*p - 0.3*t + 4
	}
	return x, y
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(b))
}

func TestParsePollutant(t *testing.T) {
	tests := []struct {
		in      string
		want    Pollutant
		wantErr bool
	}{
		{in: "pm2_5", want: PM25},
		{in: " PM10 ", want: PM10},
		{in: "pm25", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePollutant(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePollutant(%q) error = nil, want non-nil", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePollutant(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestFit_LinearRecoversExactRelation(t *testing.T) {
	x, y := linearData(200)

	r, err := Fit(PM25, Spec{Algorithm: Linear, Degree: 1}, x, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	got, err := r.Predict([]Features{{50, 25, 12.3}, {80, 5, 100}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []float64{2*50 + 0.5*25 + 1.1*12.3 + 3, 2*80 + 0.5*5 + 1.1*100 + 3}
	for i := range want {
		if !almostEqual(got[i], want[i], 1e-6) {
			t.Errorf("Predict[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFit_Poly2CapturesInteractions(t *testing.T) {
	x, y := quadraticData(300)

	poly, err := Fit(PM10, Spec{Algorithm: Poly2, Degree: 2}, x, y)
	if err != nil {
		t.Fatalf("Fit poly2: %v", err)
	}
	row := Features{45, 20, 33}
	want := 0.01*45*33 + 0.02*33*33 - 0.3*20 + 4
	got, err := poly.Predict([]Features{row})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !almostEqual(got[0], want, 1e-6) {
		t.Errorf("poly2 Predict = %v, want %v", got[0], want)
	}
}

func TestFit_RidgeShrinksButStaysClose(t *testing.T) {
	x, y := linearData(500)

	r, err := Fit(PM25, Spec{Algorithm: Ridge, Degree: 1, Lambda: 1}, x, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	got, err := r.Predict([]Features{{50, 25, 12.3}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := 2*50 + 0.5*25 + 1.1*12.3 + 3
	if !almostEqual(got[0], want, 1e-2) {
		t.Errorf("ridge Predict = %v, want about %v", got[0], want)
	}
}

func TestFit_ConstantFeature(t *testing.T) {
	x, y := linearData(50)
	for i := range x {
		x[i][1] = 21
	}
	if _, err := Fit(PM25, Spec{Algorithm: Linear, Degree: 1}, x, y); err != nil {
		t.Fatalf("Fit with constant column: %v", err)
	}
}

// fitCondition fits a linear model with debug logging captured and returns
// the condition number reported for it.
func fitCondition(t *testing.T, x []Features, y []float64) float64 {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	if _, err := Fit(PM25, Spec{Algorithm: Linear, Degree: 1}, x, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	slog.SetDefault(prev)

	var entry struct {
		Msg       string  `json:"msg"`
		Algorithm string  `json:"algorithm"`
		Condition float64 `json:"condition"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log %q: %v", buf.String(), err)
	}
	if entry.Algorithm != string(Linear) || entry.Condition <= 0 {
		t.Fatalf("log entry = %+v", entry)
	}
	return entry.Condition
}

func TestFit_LogsConditionNumber(t *testing.T) {
	x, y := linearData(60)
	well := fitCondition(t, x, y)

	collinear := make([]Features, len(x))
	for i, row := range x {
		collinear[i] = Features{row[0], row[1], row[0] + 1e-6*float64(i%3)}
	}
	poor := fitCondition(t, collinear, y)

	if well > 100 {
		t.Errorf("independent features condition = %v, want < 100", well)
	}
	if poor < 1e4 {
		t.Errorf("collinear features condition = %v, want > 1e4", poor)
	}
}

func TestFit_Errors(t *testing.T) {
	x, y := linearData(10)
	tests := []struct {
		name string
		spec Spec
		x    []Features
		y    []float64
	}{
		{name: "length mismatch", spec: Candidates[0], x: x, y: y[:5]},
		{name: "too few rows", spec: Candidates[0], x: x[:1], y: y[:1]},
		{name: "bad degree", spec: Spec{Algorithm: "cubic", Degree: 3}, x: x, y: y},
		{name: "negative lambda", spec: Spec{Algorithm: Ridge, Degree: 1, Lambda: -1}, x: x, y: y},
		{name: "nan target", spec: Candidates[0], x: x[:2], y: []float64{1, math.NaN()}},
		{name: "inf feature", spec: Candidates[0], x: []Features{{1, 2, 3}, {math.Inf(1), 2, 3}}, y: []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Fit(PM25, tt.spec, tt.x, tt.y); err == nil {
				t.Fatal("Fit error = nil, want non-nil")
			}
		})
	}
}

func TestPredict_RejectsNonFinite(t *testing.T) {
	x, y := linearData(20)
	r, err := Fit(PM25, Candidates[0], x, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if _, err := r.Predict([]Features{{1, 2, 3}, {math.NaN(), 2, 3}}); err == nil {
		t.Fatal("Predict error = nil, want non-nil")
	}
}

func TestPredict_Deterministic(t *testing.T) {
	x, y := quadraticData(100)
	r, err := Fit(PM25, Candidates[3], x, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	first, _ := r.Predict(x[:10])
	second, _ := r.Predict(x[:10])
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Predict not deterministic at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestArtifact_SaveLoadRoundTripPredictsIdentically(t *testing.T) {
	x, y := quadraticData(120)
	r, err := Fit(PM10, Spec{Algorithm: Poly2Ridge, Degree: 2, Lambda: 1}, x, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	trainedAt := time.Date(2024, 5, 28, 0, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "nested", "model_pm10.json.gz")
	if err := SaveArtifact(path, r.Artifact(Metrics{RMSE: 0.1, R2: 0.99}, trainedAt, len(x))); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}

	loaded, a, err := LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if a.Pollutant != PM10 || a.Algorithm != Poly2Ridge || a.Rows != 120 || !a.TrainedAt.Equal(trainedAt) {
		t.Errorf("artifact metadata = %+v", a)
	}
	if a.Metrics.R2 != 0.99 {
		t.Errorf("Metrics.R2 = %v, want 0.99", a.Metrics.R2)
	}

	want, _ := r.Predict(x[:5])
	got, err := loaded.Predict(x[:5])
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("loaded Predict[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func validArtifact(t *testing.T) Artifact {
	t.Helper()
	x, y := linearData(30)
	r, err := Fit(PM25, Candidates[0], x, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return r.Artifact(Metrics{}, time.Now(), len(x))
}

func TestArtifact_RegressorValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{name: "format version", mutate: func(a *Artifact) { a.FormatVersion = 99 }},
		{name: "pollutant", mutate: func(a *Artifact) { a.Pollutant = "co2" }},
		{name: "features order", mutate: func(a *Artifact) { a.Features = []string{"temp", "hum", "pm2_5"} }},
		{name: "features for other pollutant", mutate: func(a *Artifact) { a.Features = PM10.FeatureNames() }},
		{name: "coefficient count", mutate: func(a *Artifact) { a.Coefficients = a.Coefficients[:2] }},
		{name: "degree mismatch", mutate: func(a *Artifact) { a.Degree = 2 }},
		{name: "zero scale", mutate: func(a *Artifact) { a.Scale[0] = 0 }},
		{name: "nan coefficient", mutate: func(a *Artifact) { a.Coefficients[1] = math.NaN() }},
		{name: "inf intercept", mutate: func(a *Artifact) { a.Intercept = math.Inf(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validArtifact(t)
			tt.mutate(&a)
			if _, err := a.Regressor(); !errors.Is(err, ErrInvalidArtifact) {
				t.Fatalf("Regressor() error = %v, want ErrInvalidArtifact", err)
			}
		})
	}
}

func TestReadArtifact_Corrupt(t *testing.T) {
	t.Run("not gzip", func(t *testing.T) {
		if _, err := ReadArtifact(bytes.NewReader([]byte(`{"format_version":1}`))); !errors.Is(err, ErrInvalidArtifact) {
			t.Fatalf("error = %v, want ErrInvalidArtifact", err)
		}
	})

	t.Run("gzip but not json", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte("\x80\x04pickle"))
		_ = zw.Close()
		if _, err := ReadArtifact(&buf); !errors.Is(err, ErrInvalidArtifact) {
			t.Fatalf("error = %v, want ErrInvalidArtifact", err)
		}
	})

	t.Run("unknown fields", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(`{"format_version":1,"predict":"lambda"}`))
		_ = zw.Close()
		if _, err := ReadArtifact(&buf); !errors.Is(err, ErrInvalidArtifact) {
			t.Fatalf("error = %v, want ErrInvalidArtifact", err)
		}
	})
}

func TestLoadArtifact_Missing(t *testing.T) {
	_, _, err := LoadArtifact(filepath.Join(t.TempDir(), "nope.json.gz"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadSet(t *testing.T) {
	dir := t.TempDir()
	x, y := linearData(40)
	pm25, err := Fit(PM25, Candidates[0], x, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	pm10, err := Fit(PM10, Candidates[1], x, y)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	pm25Path := filepath.Join(dir, "pm25.json.gz")
	pm10Path := filepath.Join(dir, "pm10.json.gz")
	if err := SaveArtifact(pm25Path, pm25.Artifact(Metrics{}, time.Now(), len(x))); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	if err := SaveArtifact(pm10Path, pm10.Artifact(Metrics{}, time.Now(), len(x))); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}

	t.Run("both slots", func(t *testing.T) {
		set, err := LoadSet(map[Pollutant]string{PM10: pm10Path, PM25: pm25Path}, nil)
		if err != nil {
			t.Fatalf("LoadSet: %v", err)
		}
		got := set.Pollutants()
		if len(got) != 2 || got[0] != PM25 || got[1] != PM10 {
			t.Fatalf("Pollutants() = %v, want [pm2_5 pm10]", got)
		}
		if _, ok := set.Get(PM10); !ok {
			t.Fatal("Get(PM10) missing")
		}
	})

	t.Run("empty path skipped", func(t *testing.T) {
		set, err := LoadSet(map[Pollutant]string{PM25: pm25Path, PM10: ""}, nil)
		if err != nil {
			t.Fatalf("LoadSet: %v", err)
		}
		if set.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", set.Len())
		}
	})

	t.Run("slot mismatch", func(t *testing.T) {
		_, err := LoadSet(map[Pollutant]string{PM25: pm10Path}, nil)
		if !errors.Is(err, ErrInvalidArtifact) {
			t.Fatalf("LoadSet error = %v, want ErrInvalidArtifact", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadSet(map[Pollutant]string{PM25: filepath.Join(dir, "missing.gz")}, nil); err == nil {
			t.Fatal("LoadSet error = nil, want non-nil")
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		if _, err := LoadSet(map[Pollutant]string{}, nil); err == nil {
			t.Fatal("LoadSet error = nil, want non-nil")
		}
	})
}
