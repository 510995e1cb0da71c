package dto

import (
	"time"

	"github.com/docuflow/intake-api/internal/models"
)

// ChecklistItemSpec is one slot definition used when seeding a client checklist.
type ChecklistItemSpec struct {
	DocumentType string                   `json:"documentType" binding:"required" validate:"required"`
	Category     string                   `json:"category" binding:"required" validate:"required"`
	Description  *string                  `json:"description"`
	IsRequired   bool                     `json:"isRequired"`
	Priority     models.ChecklistPriority `json:"priority"`
	DueDate      *time.Time               `json:"dueDate"`
}

// SeedChecklistRequest establishes a client's required-document set.
type SeedChecklistRequest struct {
	Items []ChecklistItemSpec `json:"items" binding:"required,min=1,dive" validate:"required,min=1,dive"`
}

// UpdateChecklistItemRequest toggles completion for one item.
type UpdateChecklistItemRequest struct {
	IsCompleted bool    `json:"isCompleted"`
	DocumentID  *string `json:"documentId"`
}

// ChecklistItemResponse pairs the updated item with the recomputed session.
type ChecklistItemResponse struct {
	Item    models.ChecklistItem      `json:"item"`
	Session *models.CollectionSession `json:"session,omitempty"`
}

// ReminderResponse reports how many reminder alerts were created.
type ReminderResponse struct {
	RemindersSent int `json:"remindersSent"`
}
