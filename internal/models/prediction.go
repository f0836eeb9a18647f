package models

import (
	"fmt"
	"time"
)

// DefaultPowerUnit is the unit suffix shown next to an estimate
const DefaultPowerUnit = "J"

// Estimate is the outcome of a single prediction
type Estimate struct {
	PowerOutput   float64       `json:"power_output"`
	RawPrediction float64       `json:"raw_prediction"`
	Unit          string        `json:"unit"`
	Display       string        `json:"display"`
	Features      FeatureVector `json:"features"`
	ModelVersion  string        `json:"model_version,omitempty"`
}

// Prediction represents a recorded estimate in the prediction history
type Prediction struct {
	ID            int64  `json:"id" db:"id"`
	RequestID     string `json:"request_id,omitempty" db:"request_id"`
	ReadingSet    `json:"readings"`
	RawPrediction float64   `json:"raw_prediction" db:"raw_prediction"`
	PowerOutput   float64   `json:"power_output" db:"power_output"`
	Unit          string    `json:"unit" db:"unit"`
	ModelVersion  string    `json:"model_version" db:"model_version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// NewPrediction builds a history record from an estimate
func NewPrediction(requestID string, readings ReadingSet, est *Estimate) *Prediction {
	return &Prediction{
		RequestID:     requestID,
		ReadingSet:    readings,
		RawPrediction: est.RawPrediction,
		PowerOutput:   est.PowerOutput,
		Unit:          est.Unit,
		ModelVersion:  est.ModelVersion,
		CreatedAt:     time.Now().UTC(),
	}
}

// FormatPower renders a power value with two decimals and a unit suffix
func FormatPower(value float64, unit string) string {
	if unit == "" {
		return fmt.Sprintf("%.2f", value)
	}
	return fmt.Sprintf("%.2f %s", value, unit)
}
