package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ProcessingStatus captures the overall pipeline lifecycle of a document.
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether no further automatic transition occurs.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingStatusCompleted || s == ProcessingStatusFailed
}

// AnalysisStatus tracks the AI-analysis sub-stage independently of overall processing.
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// Document is the durable record of one uploaded client file.
type Document struct {
	ID                  string           `db:"id" json:"id"`
	ClientID            string           `db:"client_id" json:"client_id"`
	Name                string           `db:"name" json:"name"`
	MimeType            string           `db:"mime_type" json:"mime_type"`
	SizeBytes           int64            `db:"size_bytes" json:"size_bytes"`
	Category            string           `db:"category" json:"category"`
	StoragePath         string           `db:"storage_path" json:"storage_path"`
	ProcessingStatus    ProcessingStatus `db:"processing_status" json:"processing_status"`
	AnalysisStatus      AnalysisStatus   `db:"analysis_status" json:"analysis_status"`
	AnalysisResult      *AnalysisResult  `db:"analysis_result" json:"analysis_result,omitempty"`
	OCRText             *string          `db:"ocr_text" json:"ocr_text,omitempty"`
	FailedStage         *string          `db:"failed_stage" json:"failed_stage,omitempty"`
	ErrorMessage        *string          `db:"error_message" json:"error_message,omitempty"`
	Version             int              `db:"version" json:"version"`
	ParentDocumentID    *string          `db:"parent_document_id" json:"parent_document_id,omitempty"`
	IsSensitive         bool             `db:"is_sensitive" json:"is_sensitive"`
	UploadedBy          string           `db:"uploaded_by" json:"uploaded_by"`
	ReviewedBy          *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ProcessingClaimedAt *time.Time       `db:"processing_claimed_at" json:"-"`
	ProcessedAt         *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// AnalysisResult is the structured payload extracted by the AI analysis stage.
// The field set varies by document category, so extracted values stay an open
// map validated against per-category expectations at the boundary.
type AnalysisResult struct {
	DocumentClass string                 `json:"document_class,omitempty"`
	Confidence    float64                `json:"confidence"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
	MissingFields []string               `json:"missing_fields,omitempty"`
	Notes         string                 `json:"notes,omitempty"`
}

// Incomplete reports whether extraction is structurally incomplete or ambiguous.
func (a *AnalysisResult) Incomplete() bool {
	if a == nil {
		return true
	}
	return len(a.MissingFields) > 0 || len(a.Fields) == 0
}

// Value marshals the result to JSON for persistence.
func (a AnalysisResult) Value() (driver.Value, error) {
	if a.Fields == nil {
		a.Fields = map[string]interface{}{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis result: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the result struct.
func (a *AnalysisResult) Scan(value interface{}) error {
	if value == nil {
		*a = AnalysisResult{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for AnalysisResult", value)
	}
	if len(data) == 0 {
		*a = AnalysisResult{}
		return nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return fmt.Errorf("unmarshal analysis result: %w", err)
	}
	return nil
}
