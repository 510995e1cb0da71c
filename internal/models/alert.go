package models

import "time"

// AlertType classifies operator-facing alerts.
type AlertType string

const (
	AlertTypeMissingDocument      AlertType = "missing_document"
	AlertTypeDeadlineApproaching  AlertType = "deadline_approaching"
	AlertTypeQualityIssue         AlertType = "quality_issue"
	AlertTypeReviewNeeded         AlertType = "review_needed"
	AlertTypeClientActionRequired AlertType = "client_action_required"
	AlertTypeSystemError          AlertType = "system_error"
)

// AlertSeverity ranks alert urgency.
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityInfo     AlertSeverity = "info"
)

// AlertState is the acknowledge/resolve lifecycle.
type AlertState string

const (
	AlertStateActive       AlertState = "active"
	AlertStateAcknowledged AlertState = "acknowledged"
	AlertStateResolved     AlertState = "resolved"
)

// Alert is one operator-facing signal derived from checklist and pipeline
// state. Alerts are idempotent per (client_id, type, subject_id); the
// condition key fences re-raising after a resolve until the underlying
// condition actually changes. Resolved alerts are retained for audit history.
type Alert struct {
	ID             string        `db:"id" json:"id"`
	ClientID       string        `db:"client_id" json:"client_id"`
	Type           AlertType     `db:"type" json:"type"`
	SubjectID      string        `db:"subject_id" json:"subject_id"`
	ConditionKey   string        `db:"condition_key" json:"-"`
	Severity       AlertSeverity `db:"severity" json:"severity"`
	Title          string        `db:"title" json:"title"`
	Message        string        `db:"message" json:"message"`
	ActionRequired string        `db:"action_required" json:"action_required"`
	Deadline       *time.Time    `db:"deadline" json:"deadline,omitempty"`
	AssignedTo     *string       `db:"assigned_to" json:"assigned_to,omitempty"`
	State          AlertState    `db:"state" json:"state"`
	AcknowledgedBy *string       `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolutionNote *string       `db:"resolution_note" json:"resolution_note,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}
