package types

import "encoding/json"

// Record is one sensor reading as received. Values stay raw so fields the
// service does not touch are returned exactly as sent.
type Record map[string]json.RawMessage

// Batch is an ordered sequence of records from one request.
type Batch []Record

// CalibratedRecord is a Record with each active pollutant field replaced by
// its corrected value (float64); every other value is the json.RawMessage as received.
type CalibratedRecord map[string]any

type Instruction struct {
	Instruction string `json:"Instruction"`
}

type Health struct {
	Status string   `json:"status"`
	Models []string `json:"models"`
}
