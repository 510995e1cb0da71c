package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/intake-api/internal/models"
)

func TestSessionRepositoryGetByClient(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "client_id", "status", "progress_percentage", "total_required",
		"completed_count", "last_activity", "deadline", "notes", "created_at", "updated_at",
	}).AddRow("sess-1", "client-1", models.SessionStatusInProgress, 67, 3, 2, now, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM document_collection_sessions WHERE client_id = $1`)).
		WithArgs("client-1").
		WillReturnRows(rows)

	session, err := repo.GetByClient(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, session.Status)
	assert.Equal(t, 67, session.ProgressPercentage)
}

func TestSessionRepositoryUpsertDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_collection_sessions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	session := &models.CollectionSession{
		ClientID:           "client-1",
		Status:             models.SessionStatusCompleted,
		ProgressPercentage: 100,
		TotalRequired:      2,
		CompletedCount:     2,
	}
	require.NoError(t, repo.Upsert(context.Background(), session))

	assert.NotEmpty(t, session.ID)
	assert.False(t, session.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
