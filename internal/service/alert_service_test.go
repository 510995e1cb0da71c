package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/models"
	"github.com/docuflow/intake-api/internal/repository"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
)

type mockAlertStore struct {
	alerts  []*models.Alert
	nextID  int
	updates int
}

func (m *mockAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	m.nextID++
	if alert.ID == "" {
		alert.ID = fmt.Sprintf("alert-%d", m.nextID)
	}
	if alert.State == "" {
		alert.State = models.AlertStateActive
	}
	alert.CreatedAt = time.Now().UTC().Add(time.Duration(m.nextID) * time.Millisecond)
	cp := *alert
	m.alerts = append(m.alerts, &cp)
	return nil
}

func (m *mockAlertStore) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	for _, alert := range m.alerts {
		if alert.ID == id {
			cp := *alert
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAlertStore) ListOpen(ctx context.Context, clientID string) ([]models.Alert, error) {
	var out []models.Alert
	for _, alert := range m.alerts {
		if alert.State == models.AlertStateResolved {
			continue
		}
		if clientID != "" && alert.ClientID != clientID {
			continue
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (m *mockAlertStore) LatestBySubject(ctx context.Context, clientID string, alertType models.AlertType, subjectID string) (*models.Alert, error) {
	var latest *models.Alert
	for _, alert := range m.alerts {
		if alert.ClientID != clientID || alert.Type != alertType || alert.SubjectID != subjectID {
			continue
		}
		if latest == nil || alert.CreatedAt.After(latest.CreatedAt) {
			latest = alert
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (m *mockAlertStore) Update(ctx context.Context, id string, params repository.UpdateAlertParams) error {
	for _, alert := range m.alerts {
		if alert.ID != id {
			continue
		}
		m.updates++
		if params.Severity != nil {
			alert.Severity = *params.Severity
		}
		if params.Title != nil {
			alert.Title = *params.Title
		}
		if params.Message != nil {
			alert.Message = *params.Message
		}
		if params.ActionRequired != nil {
			alert.ActionRequired = *params.ActionRequired
		}
		if params.Deadline != nil {
			alert.Deadline = params.Deadline
		}
		if params.ConditionKey != nil {
			alert.ConditionKey = *params.ConditionKey
		}
		if params.State != nil {
			alert.State = *params.State
		}
		if params.AcknowledgedBy != nil {
			alert.AcknowledgedBy = params.AcknowledgedBy
		}
		if params.AcknowledgedAt != nil {
			alert.AcknowledgedAt = params.AcknowledgedAt
		}
		if params.ResolvedAt != nil {
			alert.ResolvedAt = params.ResolvedAt
		}
		if params.ResolutionNote != nil {
			alert.ResolutionNote = params.ResolutionNote
		}
		return nil
	}
	return sql.ErrNoRows
}

type mockDocLister struct {
	docs []models.Document
}

func (m *mockDocLister) ListByClient(ctx context.Context, clientID string) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range m.docs {
		if doc.ClientID == clientID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func newTestAlertService(store *mockAlertStore, checklist *mockChecklistStore, docs *mockDocLister) *AlertService {
	return NewAlertService(store, checklist, docs, nil, nil, AlertServiceConfig{
		DeadlineHorizon:           168 * time.Hour,
		ReviewConfidenceThreshold: 0.75,
	})
}

func TestAlertServiceEvaluateOverdueItem(t *testing.T) {
	store := &mockAlertStore{}
	checklist := newMockChecklistStore()
	overdue := time.Now().Add(-48 * time.Hour)
	seedItem(checklist, "item-1", "client-1", "tax", true, &overdue)

	svc := newTestAlertService(store, checklist, &mockDocLister{})
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, err := store.ListOpen(context.Background(), "client-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertTypeDeadlineApproaching, open[0].Type)
	assert.Equal(t, models.AlertSeverityCritical, open[0].Severity)
	assert.Equal(t, "item-1", open[0].SubjectID)
}

func TestAlertServiceEvaluateMissingDocument(t *testing.T) {
	store := &mockAlertStore{}
	checklist := newMockChecklistStore()
	seedItem(checklist, "item-1", "client-1", "tax", true, nil)

	svc := newTestAlertService(store, checklist, &mockDocLister{})
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, err := store.ListOpen(context.Background(), "client-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertTypeMissingDocument, open[0].Type)
	assert.Equal(t, models.AlertSeverityWarning, open[0].Severity)

	// Once the item gains deadline pressure the missing_document alert is
	// superseded by a deadline_approaching one.
	dueSoon := time.Now().Add(48 * time.Hour)
	checklist.items["item-1"].DueDate = &dueSoon
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, _ = store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertTypeDeadlineApproaching, open[0].Type)
}

func TestAlertServiceEvaluateIsIdempotent(t *testing.T) {
	store := &mockAlertStore{}
	checklist := newMockChecklistStore()
	overdue := time.Now().Add(-48 * time.Hour)
	seedItem(checklist, "item-1", "client-1", "tax", true, &overdue)

	svc := newTestAlertService(store, checklist, &mockDocLister{})
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, err := store.ListOpen(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestAlertServiceResolvedConditionIsNotReraised(t *testing.T) {
	store := &mockAlertStore{}
	checklist := newMockChecklistStore()
	overdue := time.Now().Add(-48 * time.Hour)
	seedItem(checklist, "item-1", "client-1", "tax", true, &overdue)

	svc := newTestAlertService(store, checklist, &mockDocLister{})
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)
	_, err := svc.Resolve(context.Background(), open[0].ID, dto.ResolveAlertRequest{Note: "client called, extension granted"})
	require.NoError(t, err)

	// Same condition: the resolved alert stays resolved.
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))
	open, _ = store.ListOpen(context.Background(), "client-1")
	assert.Empty(t, open)

	// Changed condition (new due date, still overdue) raises a fresh alert.
	newDue := time.Now().Add(-24 * time.Hour)
	checklist.items["item-1"].DueDate = &newDue
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))
	open, _ = store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertStateActive, open[0].State)
}

func TestAlertServiceDeadlineEscalation(t *testing.T) {
	store := &mockAlertStore{}
	checklist := newMockChecklistStore()
	dueSoon := time.Now().Add(72 * time.Hour)
	seedItem(checklist, "item-1", "client-1", "tax", true, &dueSoon)

	svc := newTestAlertService(store, checklist, &mockDocLister{})
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertTypeDeadlineApproaching, open[0].Type)
	assert.Equal(t, models.AlertSeverityWarning, open[0].Severity)

	// Inside 24h the same alert escalates in place instead of duplicating.
	imminent := time.Now().Add(12 * time.Hour)
	checklist.items["item-1"].DueDate = &imminent
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, _ = store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertSeverityCritical, open[0].Severity)
}

func TestAlertServiceEvaluateReviewNeeded(t *testing.T) {
	store := &mockAlertStore{}
	doc := *pendingDocument()
	doc.ProcessingStatus = models.ProcessingStatusCompleted
	doc.AnalysisResult = &models.AnalysisResult{
		Confidence: 0.42,
		Fields:     map[string]interface{}{"wages": 54000},
	}
	docs := &mockDocLister{docs: []models.Document{doc}}

	svc := newTestAlertService(store, newMockChecklistStore(), docs)
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertTypeReviewNeeded, open[0].Type)

	// A reviewer sign-off clears the condition on the next pass.
	reviewer := "op-1"
	docs.docs[0].ReviewedBy = &reviewer
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))
	open, _ = store.ListOpen(context.Background(), "client-1")
	assert.Empty(t, open)
}

func TestAlertServiceEvaluateQualityIssue(t *testing.T) {
	store := &mockAlertStore{}
	doc := *pendingDocument()
	doc.ProcessingStatus = models.ProcessingStatusCompleted
	doc.AnalysisResult = &models.AnalysisResult{
		Confidence:    0.9,
		MissingFields: []string{"ssn", "employer"},
	}
	docs := &mockDocLister{docs: []models.Document{doc}}

	svc := newTestAlertService(store, newMockChecklistStore(), docs)
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))

	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertTypeQualityIssue, open[0].Type)
	assert.Contains(t, open[0].Message, "ssn")
}

func TestAlertServiceRecordSystemError(t *testing.T) {
	store := &mockAlertStore{}
	svc := newTestAlertService(store, newMockChecklistStore(), &mockDocLister{})

	require.NoError(t, svc.RecordSystemError(context.Background(), "client-1", "doc-1", "ocr stage failed: corrupt file"))
	require.NoError(t, svc.RecordSystemError(context.Background(), "client-1", "doc-1", "ocr stage failed: corrupt file"))

	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)
	assert.Equal(t, models.AlertTypeSystemError, open[0].Type)

	// Resolving fences the same failure, a new failure mode re-raises.
	_, err := svc.Resolve(context.Background(), open[0].ID, dto.ResolveAlertRequest{Note: "reprocessed fine"})
	require.NoError(t, err)
	require.NoError(t, svc.RecordSystemError(context.Background(), "client-1", "doc-1", "ocr stage failed: corrupt file"))
	open, _ = store.ListOpen(context.Background(), "client-1")
	assert.Empty(t, open)

	require.NoError(t, svc.RecordSystemError(context.Background(), "client-1", "doc-1", "analysis stage failed: timeout"))
	open, _ = store.ListOpen(context.Background(), "client-1")
	assert.Len(t, open, 1)
}

func TestAlertServiceAcknowledge(t *testing.T) {
	store := &mockAlertStore{}
	svc := newTestAlertService(store, newMockChecklistStore(), &mockDocLister{})
	require.NoError(t, svc.RecordSystemError(context.Background(), "client-1", "doc-1", "boom"))
	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)

	alert, err := svc.Acknowledge(context.Background(), open[0].ID, dto.AcknowledgeAlertRequest{AcknowledgedBy: "op-1"})
	require.NoError(t, err)
	assert.Equal(t, models.AlertStateAcknowledged, alert.State)
	require.NotNil(t, alert.AcknowledgedBy)
	assert.Equal(t, "op-1", *alert.AcknowledgedBy)

	// Acknowledging twice is a no-op.
	again, err := svc.Acknowledge(context.Background(), open[0].ID, dto.AcknowledgeAlertRequest{AcknowledgedBy: "op-2"})
	require.NoError(t, err)
	assert.Equal(t, "op-1", *again.AcknowledgedBy)
}

func TestAlertServiceAcknowledgeResolvedRejected(t *testing.T) {
	store := &mockAlertStore{}
	svc := newTestAlertService(store, newMockChecklistStore(), &mockDocLister{})
	require.NoError(t, svc.RecordSystemError(context.Background(), "client-1", "doc-1", "boom"))
	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)

	_, err := svc.Resolve(context.Background(), open[0].ID, dto.ResolveAlertRequest{Note: "fixed"})
	require.NoError(t, err)

	_, err = svc.Acknowledge(context.Background(), open[0].ID, dto.AcknowledgeAlertRequest{AcknowledgedBy: "op-1"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrAlertResolved.Code, appErr.Code)
}

func TestAlertServiceResolveIsTerminalAndIdempotent(t *testing.T) {
	store := &mockAlertStore{}
	svc := newTestAlertService(store, newMockChecklistStore(), &mockDocLister{})
	require.NoError(t, svc.RecordSystemError(context.Background(), "client-1", "doc-1", "boom"))
	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)

	resolved, err := svc.Resolve(context.Background(), open[0].ID, dto.ResolveAlertRequest{Note: "handled"})
	require.NoError(t, err)
	assert.Equal(t, models.AlertStateResolved, resolved.State)
	require.NotNil(t, resolved.ResolutionNote)
	assert.Equal(t, "handled", *resolved.ResolutionNote)

	again, err := svc.Resolve(context.Background(), open[0].ID, dto.ResolveAlertRequest{Note: "different note"})
	require.NoError(t, err)
	assert.Equal(t, "handled", *again.ResolutionNote)
}

func TestAlertServiceEvaluateResolvesClearedConditions(t *testing.T) {
	store := &mockAlertStore{}
	checklist := newMockChecklistStore()
	overdue := time.Now().Add(-48 * time.Hour)
	seedItem(checklist, "item-1", "client-1", "tax", true, &overdue)

	svc := newTestAlertService(store, checklist, &mockDocLister{})
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))
	open, _ := store.ListOpen(context.Background(), "client-1")
	require.Len(t, open, 1)

	// The item gets completed; the next pass auto-resolves the alert.
	checklist.items["item-1"].IsCompleted = true
	require.NoError(t, svc.Evaluate(context.Background(), "client-1"))
	open, _ = store.ListOpen(context.Background(), "client-1")
	assert.Empty(t, open)

	resolved, err := store.GetByID(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertStateResolved, resolved.State)
	require.NotNil(t, resolved.ResolutionNote)
	assert.Equal(t, "condition cleared", *resolved.ResolutionNote)
}
