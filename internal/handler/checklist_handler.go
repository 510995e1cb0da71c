package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/service"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
	"github.com/docuflow/intake-api/pkg/response"
)

// ChecklistHandler manages checklist and collection session endpoints.
type ChecklistHandler struct {
	checklist *service.ChecklistService
	sessions  *service.SessionService
}

// NewChecklistHandler constructs handler.
func NewChecklistHandler(checklist *service.ChecklistService, sessions *service.SessionService) *ChecklistHandler {
	return &ChecklistHandler{checklist: checklist, sessions: sessions}
}

// Get godoc
// @Summary Get a client's checklist
// @Tags Checklist
// @Produce json
// @Param clientId path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Router /clients/{clientId}/checklist [get]
func (h *ChecklistHandler) Get(c *gin.Context) {
	items, err := h.checklist.GetChecklist(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Seed godoc
// @Summary Seed a client's required-document checklist
// @Tags Checklist
// @Accept json
// @Produce json
// @Param clientId path string true "Client ID"
// @Param request body dto.SeedChecklistRequest true "Checklist items"
// @Success 201 {object} response.Envelope
// @Router /clients/{clientId}/checklist [post]
func (h *ChecklistHandler) Seed(c *gin.Context) {
	var req dto.SeedChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checklist payload"))
		return
	}
	items, err := h.checklist.SeedChecklist(c.Request.Context(), c.Param("clientId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, items)
}

// UpdateItem godoc
// @Summary Update a checklist item's completion state
// @Tags Checklist
// @Accept json
// @Produce json
// @Param id path string true "Checklist item ID"
// @Param request body dto.UpdateChecklistItemRequest true "Completion state"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope "Linked document not processed"
// @Router /checklist/{id} [put]
func (h *ChecklistHandler) UpdateItem(c *gin.Context) {
	var req dto.UpdateChecklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checklist update"))
		return
	}
	result, err := h.checklist.UpdateItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SendReminders godoc
// @Summary Send reminders for outstanding checklist items
// @Tags Checklist
// @Produce json
// @Param clientId path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Router /clients/{clientId}/reminders [post]
func (h *ChecklistHandler) SendReminders(c *gin.Context) {
	sent, err := h.checklist.SendReminder(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ReminderResponse{RemindersSent: sent}, nil)
}

// GetSession godoc
// @Summary Get a client's collection session
// @Tags Checklist
// @Produce json
// @Param clientId path string true "Client ID"
// @Success 200 {object} response.Envelope
// @Router /clients/{clientId}/session [get]
func (h *ChecklistHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetSession(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}
