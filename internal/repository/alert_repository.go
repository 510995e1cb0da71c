package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docuflow/intake-api/internal/models"
)

const alertColumns = `id, client_id, type, subject_id, condition_key, severity, title, message,
action_required, deadline, assigned_to, state, acknowledged_by, acknowledged_at, resolved_at,
resolution_note, created_at, updated_at`

// AlertRepository persists operator alerts. Resolved rows are retained for
// audit history, never deleted.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository constructs the repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert row with generated defaults.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.State == "" {
		alert.State = models.AlertStateActive
	}
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	alert.UpdatedAt = now
	const query = `INSERT INTO alerts (id, client_id, type, subject_id, condition_key, severity, title,
message, action_required, deadline, assigned_to, state, acknowledged_by, acknowledged_at,
resolved_at, resolution_note, created_at, updated_at)
VALUES (:id, :client_id, :type, :subject_id, :condition_key, :severity, :title, :message,
:action_required, :deadline, :assigned_to, :state, :acknowledged_by, :acknowledged_at,
:resolved_at, :resolution_note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// GetByID returns one alert.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM alerts WHERE id = $1`, alertColumns)
	var alert models.Alert
	if err := r.db.GetContext(ctx, &alert, query, id); err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &alert, nil
}

// ListOpen returns non-resolved alerts, practice-wide when clientID is empty.
func (r *AlertRepository) ListOpen(ctx context.Context, clientID string) ([]models.Alert, error) {
	var (
		query string
		args  []interface{}
	)
	if clientID == "" {
		query = fmt.Sprintf(`SELECT %s FROM alerts WHERE state <> 'resolved'
ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'error' THEN 1 WHEN 'warning' THEN 2 ELSE 3 END,
created_at DESC`, alertColumns)
	} else {
		query = fmt.Sprintf(`SELECT %s FROM alerts WHERE state <> 'resolved' AND client_id = $1
ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'error' THEN 1 WHEN 'warning' THEN 2 ELSE 3 END,
created_at DESC`, alertColumns)
		args = append(args, clientID)
	}
	var alerts []models.Alert
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("list open alerts: %w", err)
	}
	return alerts, nil
}

// LatestBySubject returns the most recent alert for one (client, type, subject)
// condition regardless of state. Used by the evaluation pass to dedup and to
// fence resolved conditions.
func (r *AlertRepository) LatestBySubject(ctx context.Context, clientID string, alertType models.AlertType, subjectID string) (*models.Alert, error) {
	query := fmt.Sprintf(`SELECT %s FROM alerts
WHERE client_id = $1 AND type = $2 AND subject_id = $3
ORDER BY created_at DESC LIMIT 1`, alertColumns)
	var alert models.Alert
	if err := r.db.GetContext(ctx, &alert, query, clientID, alertType, subjectID); err != nil {
		return nil, fmt.Errorf("get alert by subject: %w", err)
	}
	return &alert, nil
}

// UpdateAlertParams defines the mutable fields.
type UpdateAlertParams struct {
	Severity       *models.AlertSeverity
	Title          *string
	Message        *string
	ActionRequired *string
	Deadline       *time.Time
	ConditionKey   *string
	State          *models.AlertState
	AcknowledgedBy *string
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
	ResolutionNote *string
}

// Update persists the provided changes for an alert row.
func (r *AlertRepository) Update(ctx context.Context, id string, params UpdateAlertParams) error {
	set := make([]string, 0, 11)
	args := make([]interface{}, 0, 12)
	argPos := 1

	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Severity != nil {
		add("severity", *params.Severity)
	}
	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Message != nil {
		add("message", *params.Message)
	}
	if params.ActionRequired != nil {
		add("action_required", *params.ActionRequired)
	}
	if params.Deadline != nil {
		add("deadline", *params.Deadline)
	}
	if params.ConditionKey != nil {
		add("condition_key", *params.ConditionKey)
	}
	if params.State != nil {
		add("state", *params.State)
	}
	if params.AcknowledgedBy != nil {
		add("acknowledged_by", *params.AcknowledgedBy)
	}
	if params.AcknowledgedAt != nil {
		add("acknowledged_at", *params.AcknowledgedAt)
	}
	if params.ResolvedAt != nil {
		add("resolved_at", *params.ResolvedAt)
	}
	if params.ResolutionNote != nil {
		add("resolution_note", *params.ResolutionNote)
	}

	if len(set) == 0 {
		return nil
	}

	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE alerts SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return nil
}
