package models

import "time"

// ChecklistPriority orders required-document slots for operators.
type ChecklistPriority string

const (
	ChecklistPriorityLow    ChecklistPriority = "low"
	ChecklistPriorityMedium ChecklistPriority = "medium"
	ChecklistPriorityHigh   ChecklistPriority = "high"
)

// Rank maps priority to a sortable weight, high first.
func (p ChecklistPriority) Rank() int {
	switch p {
	case ChecklistPriorityHigh:
		return 0
	case ChecklistPriorityMedium:
		return 1
	default:
		return 2
	}
}

// ChecklistItem is one required-document slot tracked per client.
// Invariant: IsCompleted implies CompletedAt is set, and a linked document
// must have reached processing_status completed.
type ChecklistItem struct {
	ID             string            `db:"id" json:"id"`
	ClientID       string            `db:"client_id" json:"client_id"`
	DocumentType   string            `db:"document_type" json:"document_type"`
	Category       string            `db:"category" json:"category"`
	Description    *string           `db:"description" json:"description,omitempty"`
	IsRequired     bool              `db:"is_required" json:"is_required"`
	IsCompleted    bool              `db:"is_completed" json:"is_completed"`
	Priority       ChecklistPriority `db:"priority" json:"priority"`
	DueDate        *time.Time        `db:"due_date" json:"due_date,omitempty"`
	CompletedAt    *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	DocumentID     *string           `db:"document_id" json:"document_id,omitempty"`
	ReminderCount  int               `db:"reminder_count" json:"reminder_count"`
	LastReminderAt *time.Time        `db:"last_reminder_at" json:"last_reminder_at,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// Overdue reports whether the item has a due date in the past and is incomplete.
func (i ChecklistItem) Overdue(now time.Time) bool {
	return !i.IsCompleted && i.DueDate != nil && i.DueDate.Before(now)
}

// DueWithin reports whether the item is incomplete with a due date inside the window.
func (i ChecklistItem) DueWithin(now time.Time, window time.Duration) bool {
	if i.IsCompleted || i.DueDate == nil {
		return false
	}
	return !i.DueDate.Before(now) && i.DueDate.Sub(now) <= window
}
