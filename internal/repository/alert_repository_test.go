package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/intake-api/internal/models"
)

func alertRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "client_id", "type", "subject_id", "condition_key", "severity", "title", "message",
		"action_required", "deadline", "assigned_to", "state", "acknowledged_by", "acknowledged_at",
		"resolved_at", "resolution_note", "created_at", "updated_at",
	})
}

func TestAlertRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	alert := &models.Alert{
		ClientID:     "client-1",
		Type:         models.AlertTypeMissingDocument,
		SubjectID:    "item-1",
		ConditionKey: "overdue:2026-08-01",
		Severity:     models.AlertSeverityError,
		Title:        "W-2 overdue",
		Message:      "required document is past due",
	}
	require.NoError(t, repo.Create(context.Background(), alert))

	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, models.AlertStateActive, alert.State)
	assert.False(t, alert.CreatedAt.IsZero())
}

func TestAlertRepositoryListOpenFiltersByClient(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	now := time.Now().UTC()
	rows := alertRows().AddRow(
		"alert-1", "client-1", models.AlertTypeMissingDocument, "item-1", "overdue:2026-08-01",
		models.AlertSeverityError, "W-2 overdue", "required document is past due",
		"", nil, nil, models.AlertStateActive, nil, nil, nil, nil, now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE state <> 'resolved' AND client_id = $1`)).
		WithArgs("client-1").
		WillReturnRows(rows)

	alerts, err := repo.ListOpen(context.Background(), "client-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert-1", alerts[0].ID)
}

func TestAlertRepositoryListOpenPracticeWide(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE state <> 'resolved'
ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'error' THEN 1 WHEN 'warning' THEN 2 ELSE 3 END`)).
		WillReturnRows(alertRows())

	alerts, err := repo.ListOpen(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestAlertRepositoryLatestBySubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	now := time.Now().UTC()
	rows := alertRows().AddRow(
		"alert-2", "client-1", models.AlertTypeDeadlineApproaching, "item-2", "imminent",
		models.AlertSeverityCritical, "Passport due", "due within a day",
		"", now.Add(12*time.Hour), nil, models.AlertStateActive, nil, nil, nil, nil, now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE client_id = $1 AND type = $2 AND subject_id = $3
ORDER BY created_at DESC LIMIT 1`)).
		WithArgs("client-1", models.AlertTypeDeadlineApproaching, "item-2").
		WillReturnRows(rows)

	alert, err := repo.LatestBySubject(context.Background(), "client-1", models.AlertTypeDeadlineApproaching, "item-2")
	require.NoError(t, err)
	assert.Equal(t, "imminent", alert.ConditionKey)
}

func TestAlertRepositoryLatestBySubjectNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC LIMIT 1`)).
		WithArgs("client-1", models.AlertTypeSystemError, "doc-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestBySubject(context.Background(), "client-1", models.AlertTypeSystemError, "doc-9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestAlertRepositoryUpdatePartial(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	state := models.AlertStateAcknowledged
	by := "operator@firm.test"
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts SET state = $1, acknowledged_by = $2, acknowledged_at = $3, updated_at = $4 WHERE id = $5")).
		WithArgs(state, by, at, sqlmock.AnyArg(), "alert-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "alert-1", UpdateAlertParams{
		State:          &state,
		AcknowledgedBy: &by,
		AcknowledgedAt: &at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAlertRepository(db)

	require.NoError(t, repo.Update(context.Background(), "alert-1", UpdateAlertParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}
