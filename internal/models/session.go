package models

import (
	"math"
	"time"
)

// SessionStatus is the aggregate collection state for a client.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "not_started"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// CollectionSession aggregates checklist state into per-client progress.
// Progress is derived from the client's checklist items, never authoritative
// on its own.
type CollectionSession struct {
	ID                 string        `db:"id" json:"id"`
	ClientID           string        `db:"client_id" json:"client_id"`
	Status             SessionStatus `db:"status" json:"status"`
	ProgressPercentage int           `db:"progress_percentage" json:"progress_percentage"`
	TotalRequired      int           `db:"total_required" json:"total_required"`
	CompletedCount     int           `db:"completed_count" json:"completed_count"`
	LastActivity       time.Time     `db:"last_activity" json:"last_activity"`
	Deadline           *time.Time    `db:"deadline" json:"deadline,omitempty"`
	Notes              *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionProgress computes the rounded completion percentage. Zero required
// items is vacuously complete.
func SessionProgress(completed, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// SessionStatusFor derives the session status from checklist counts.
// Backward transitions (completed -> in_progress) are valid when an item is
// unmarked.
func SessionStatusFor(completed, total int) SessionStatus {
	switch {
	case total == 0:
		return SessionStatusCompleted
	case completed == 0:
		return SessionStatusNotStarted
	case completed >= total:
		return SessionStatusCompleted
	default:
		return SessionStatusInProgress
	}
}
