package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/models"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
)

type alertServiceMock struct {
	active    []models.Alert
	activeErr error
	alert     *models.Alert
	err       error
}

func (m *alertServiceMock) GetActive(ctx context.Context, clientID string) ([]models.Alert, error) {
	return m.active, m.activeErr
}

func (m *alertServiceMock) Acknowledge(ctx context.Context, alertID string, req dto.AcknowledgeAlertRequest) (*models.Alert, error) {
	return m.alert, m.err
}

func (m *alertServiceMock) Resolve(ctx context.Context, alertID string, req dto.ResolveAlertRequest) (*models.Alert, error) {
	return m.alert, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAlertHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &alertServiceMock{
		active: []models.Alert{{ID: "alert-1", Type: models.AlertTypeMissingDocument, State: models.AlertStateActive}},
	}
	handler := NewAlertHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/alerts?clientId=client-1", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "alert-1")
}

func TestAlertHandlerAcknowledge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &alertServiceMock{
		alert: &models.Alert{ID: "alert-1", State: models.AlertStateAcknowledged},
	}
	handler := NewAlertHandler(mockSvc)

	payload, _ := json.Marshal(dto.AcknowledgeAlertRequest{AcknowledgedBy: "operator@firm.test"})
	c, w := newGinContext(http.MethodPost, "/alerts/alert-1/acknowledge", payload)
	c.Params = gin.Params{{Key: "id", Value: "alert-1"}}

	handler.Acknowledge(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAlertHandlerAcknowledgeRejectsEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAlertHandler(&alertServiceMock{})

	c, w := newGinContext(http.MethodPost, "/alerts/alert-1/acknowledge", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "alert-1"}}

	handler.Acknowledge(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertHandlerResolveConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &alertServiceMock{err: appErrors.Clone(appErrors.ErrAlertResolved, "alert already resolved")}
	handler := NewAlertHandler(mockSvc)

	payload, _ := json.Marshal(dto.ResolveAlertRequest{Note: "client delivered the document"})
	c, w := newGinContext(http.MethodPost, "/alerts/alert-1/resolve", payload)
	c.Params = gin.Params{{Key: "id", Value: "alert-1"}}

	handler.Resolve(c)
	require.Equal(t, appErrors.ErrAlertResolved.Status, w.Code)
}
