package dto

import (
	"time"

	"github.com/docuflow/intake-api/internal/models"
)

// ProcessRequest captures POST /documents/:id/process options.
type ProcessRequest struct {
	SkipOCR      bool                      `json:"skipOcr"`
	SkipAnalysis bool                      `json:"skipAnalysis"`
	SkipAutoFill bool                      `json:"skipAutoFill"`
	Priority     models.ProcessingPriority `json:"priority"`
}

// ReprocessRequest captures POST /documents/:id/reprocess options.
type ReprocessRequest struct {
	ProcessRequest
	Force bool `json:"force"`
}

// StageOutput summarises one stage of a finished run.
type StageOutput struct {
	Stage   models.ProcessingStage   `json:"stage"`
	Status  models.StageResultStatus `json:"status"`
	Payload models.StagePayload      `json:"payload,omitempty"`
	Error   *string                  `json:"error,omitempty"`
}

// ProcessResponse is returned when a run reaches a terminal state.
type ProcessResponse struct {
	DocumentID       string                  `json:"documentId"`
	ProcessingStatus models.ProcessingStatus `json:"processingStatus"`
	Stages           []StageOutput           `json:"stages"`
	ArtifactURL      *string                 `json:"artifactUrl,omitempty"`
	Error            *string                 `json:"error,omitempty"`
}

// ProcessingStatusResponse exposes run progress. Stale indicates the data was
// synthesized from persisted state rather than a live in-memory job.
type ProcessingStatusResponse struct {
	DocumentID  string                  `json:"documentId"`
	Status      models.ProcessingStatus `json:"status"`
	Stage       models.ProcessingStage  `json:"stage,omitempty"`
	Progress    int                     `json:"progress"`
	Message     string                  `json:"message"`
	StartedAt   *time.Time              `json:"startedAt,omitempty"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
	Stale       bool                    `json:"stale"`
}
