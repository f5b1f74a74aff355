// Package training compares candidate regressors on a historical dataset of
// co-located reference and low-cost sensor readings.
package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"calibration-engine/internal/model"
)

// Dataset holds feature rows and reference targets for one pollutant.
type Dataset struct {
	Pollutant model.Pollutant
	X         []model.Features
	Y         []float64
	// Skipped counts rows with an empty or unparsable value.
	Skipped int
}

func (d Dataset) Len() int { return len(d.Y) }

// subset returns the rows at idx, in idx order.
func (d Dataset) subset(idx []int) Dataset {
	out := Dataset{
		Pollutant: d.Pollutant,
		X:         make([]model.Features, len(idx)),
		Y:         make([]float64, len(idx)),
	}
	for i, j := range idx {
		out.X[i] = d.X[j]
		out.Y[i] = d.Y[j]
	}
	return out
}

// TargetColumn is the reference reading the model learns to reproduce.
func TargetColumn(p model.Pollutant) string { return string(p) + "_ref" }

// ReadCSV parses a headered CSV. It needs the columns <p>_ref, <p>, temp and
// hum; any other columns are ignored.
func ReadCSV(r io.Reader, p model.Pollutant) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, errors.New("csv is empty")
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	names := append(p.FeatureNames(), TargetColumn(p))
	idx := make([]int, len(names))
	for i, name := range names {
		c, ok := cols[name]
		if !ok {
			return Dataset{}, fmt.Errorf("missing column %q", name)
		}
		idx[i] = c
	}

	ds := Dataset{Pollutant: p}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		var vals [4]float64
		ok := true
		for i, c := range idx {
			if c >= len(rec) {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			ds.Skipped++
			continue
		}
		ds.X = append(ds.X, model.Features{vals[0], vals[1], vals[2]})
		ds.Y = append(ds.Y, vals[3])
	}
	return ds, nil
}

func LoadCSV(path string, p model.Pollutant) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer func() { _ = f.Close() }()

	ds, err := ReadCSV(f, p)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}
