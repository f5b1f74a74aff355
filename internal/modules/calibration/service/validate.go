package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"calibration-engine/internal/model"
	"calibration-engine/internal/modules/calibration/types"
)

// DecodeBatch parses a request body into a batch. A single object becomes a
// batch of one; an array must contain only objects. Empty input of any kind
// (no body, null, {}, []) is rejected.
func DecodeBatch(body []byte) (types.Batch, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, badRequest(MsgNoData)
	}
	if !json.Valid(body) {
		var v any
		err := json.Unmarshal(body, &v)
		if err == nil {
			err = errors.New("malformed document")
		}
		return nil, badRequest("Invalid JSON: %v", err)
	}

	switch body[0] {
	case 'n':
		return nil, badRequest(MsgNoData)
	case '{':
		var rec types.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, badRequest("Invalid JSON: %v", err)
		}
		if len(rec) == 0 {
			return nil, badRequest(MsgNoData)
		}
		return types.Batch{rec}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, badRequest("Invalid JSON: %v", err)
		}
		if len(items) == 0 {
			return nil, badRequest(MsgNoData)
		}
		batch := make(types.Batch, 0, len(items))
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, badRequest(MsgUnsupportedFormat)
			}
			var rec types.Record
			if err := json.Unmarshal(item, &rec); err != nil {
				return nil, badRequest("Invalid JSON: %v", err)
			}
			batch = append(batch, rec)
		}
		return batch, nil
	default:
		return nil, badRequest(MsgUnsupportedFormat)
	}
}

// RequiredFields lists the fields every record needs for the active models:
// hum, temp, then each pollutant key in application order.
func RequiredFields(pollutants []model.Pollutant) []string {
	if len(pollutants) == 0 {
		return nil
	}
	fields := []string{model.FieldHumidity, model.FieldTemperature}
	for _, p := range pollutants {
		fields = append(fields, string(p))
	}
	return fields
}

// Validate checks every record before any model is invoked. The first missing
// field rejects the whole batch.
func Validate(batch types.Batch, required []string) error {
	if len(batch) == 0 {
		return badRequest(MsgNoData)
	}
	for _, rec := range batch {
		for _, f := range required {
			if _, ok := rec[f]; !ok {
				return badRequest("Missing column: %s", f)
			}
		}
	}
	return nil
}

// extractFeatures builds (hum, temp, raw) rows for pollutant p in record order.
func extractFeatures(batch types.Batch, p model.Pollutant) ([]model.Features, error) {
	rows := make([]model.Features, len(batch))
	names := p.FeatureNames()
	for i, rec := range batch {
		for j, name := range names {
			v, err := numericValue(rec[name])
			if err != nil {
				return nil, &PredictionError{
					Kind:      KindFeature,
					Pollutant: string(p),
					Record:    i,
					Err:       fmt.Errorf("field %q: %w", name, err),
				}
			}
			rows[i][j] = v
		}
	}
	return rows, nil
}

// numericValue accepts JSON numbers and numeric strings. Anything else,
// including null and non-finite values, is an error.
func numericValue(raw json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	case nil:
		return 0, errors.New("value is null")
	default:
		return 0, fmt.Errorf("value of type %T is not numeric", v)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("value is not finite")
	}
	return f, nil
}
