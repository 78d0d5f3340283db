// Package history stores the append-only record of served predictions.
package history

import (
	"errors"
	"time"

	"exointel/features"
)

// Task types recorded with each prediction.
const (
	TaskClassification = "classification"
	TaskRegression     = "regression"
)

// taskScanWindow caps how many recent records a ListByTask call scans.
// Once the store holds more than this, older matches are not returned.
const taskScanWindow = 1000

// defaultListLimit matches the API default page size.
const defaultListLimit = 50

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("prediction not found")

	// ErrDeleteUnsupported is returned by Delete on every backend. Records
	// are never removed; the operation exists only to report that.
	ErrDeleteUnsupported = errors.New("prediction delete is not supported")
)

// PredictionRecord is one served prediction. Records are immutable once
// appended; OutputResult must not be mutated after Append.
type PredictionRecord struct {
	ID            int64           `json:"id"`
	TaskType      string          `json:"task_type"`
	InputFeatures features.Vector `json:"input_features"`
	OutputResult  any             `json:"output_result"`
	ModelName     string          `json:"model_name"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Store is the prediction history contract. Append assigns a strictly
// increasing id starting at 1; List returns records newest first; Delete
// always fails with ErrDeleteUnsupported.
type Store interface {
	Append(record PredictionRecord) (int64, error)
	Get(id int64) (PredictionRecord, error)
	List(limit, offset int) ([]PredictionRecord, error)
	ListByTask(taskType string, limit int) ([]PredictionRecord, error)
	Delete(id int64) error
	Close() error
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
