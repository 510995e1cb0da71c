package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/models"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
	"github.com/docuflow/intake-api/pkg/response"
)

type alertService interface {
	GetActive(ctx context.Context, clientID string) ([]models.Alert, error)
	Acknowledge(ctx context.Context, alertID string, req dto.AcknowledgeAlertRequest) (*models.Alert, error)
	Resolve(ctx context.Context, alertID string, req dto.ResolveAlertRequest) (*models.Alert, error)
}

// AlertHandler manages operator alert endpoints.
type AlertHandler struct {
	service alertService
}

// NewAlertHandler constructs handler.
func NewAlertHandler(svc alertService) *AlertHandler {
	return &AlertHandler{service: svc}
}

// List godoc
// @Summary List active alerts
// @Tags Alerts
// @Produce json
// @Param clientId query string false "Filter by client"
// @Success 200 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	alerts, err := h.service.GetActive(c.Request.Context(), c.Query("clientId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// Acknowledge godoc
// @Summary Acknowledge an alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param request body dto.AcknowledgeAlertRequest true "Acknowledger"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Alert already resolved"
// @Router /alerts/{id}/acknowledge [post]
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	var req dto.AcknowledgeAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid acknowledge payload"))
		return
	}
	alert, err := h.service.Acknowledge(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}

// Resolve godoc
// @Summary Resolve an alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param request body dto.ResolveAlertRequest true "Resolution note"
// @Success 200 {object} response.Envelope
// @Router /alerts/{id}/resolve [post]
func (h *AlertHandler) Resolve(c *gin.Context) {
	var req dto.ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a resolution note is required"))
		return
	}
	alert, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alert, nil)
}
