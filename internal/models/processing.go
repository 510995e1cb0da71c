package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ProcessingStage is one step of the extraction pipeline.
type ProcessingStage string

const (
	StageOCR      ProcessingStage = "ocr"
	StageAnalysis ProcessingStage = "analysis"
	StageAutoFill ProcessingStage = "autofill"
)

// ProcessingPriority hints scheduling for a run.
type ProcessingPriority string

const (
	ProcessingPriorityLow    ProcessingPriority = "low"
	ProcessingPriorityNormal ProcessingPriority = "normal"
	ProcessingPriorityHigh   ProcessingPriority = "high"
)

// ProcessingJob is the transient, in-memory view of one in-flight run.
// It exists only for the lifetime of the run on this process; after a restart
// callers fall back to the persisted document state.
type ProcessingJob struct {
	DocumentID  string          `json:"document_id"`
	Stage       ProcessingStage `json:"stage"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// StageResultStatus is the outcome of one stage execution.
type StageResultStatus string

const (
	StageResultCompleted StageResultStatus = "completed"
	StageResultSkipped   StageResultStatus = "skipped"
	StageResultFailed    StageResultStatus = "failed"
)

// ProcessingResult is one append-only history row of a stage execution.
type ProcessingResult struct {
	ID           string            `db:"id" json:"id"`
	DocumentID   string            `db:"document_id" json:"document_id"`
	Stage        ProcessingStage   `db:"stage" json:"stage"`
	Status       StageResultStatus `db:"status" json:"status"`
	Payload      StagePayload      `db:"payload" json:"payload"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
	StartedAt    time.Time         `db:"started_at" json:"started_at"`
	FinishedAt   time.Time         `db:"finished_at" json:"finished_at"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

// StagePayload carries stage-specific output persisted as JSONB. Shapes differ
// per stage (OCR text/fields, analysis result, auto-fill references), so the
// payload stays an open map.
type StagePayload map[string]interface{}

// Value marshals the payload to JSON for persistence.
func (p StagePayload) Value() (driver.Value, error) {
	if p == nil {
		p = StagePayload{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal stage payload: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the map.
func (p *StagePayload) Scan(value interface{}) error {
	if value == nil {
		*p = StagePayload{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StagePayload", value)
	}
	if len(data) == 0 {
		*p = StagePayload{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal stage payload: %w", err)
	}
	return nil
}
