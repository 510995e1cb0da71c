package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/service"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
	"github.com/docuflow/intake-api/pkg/response"
)

// ProcessingHandler manages pipeline endpoints.
type ProcessingHandler struct {
	service *service.ProcessingService
}

// NewProcessingHandler constructs handler.
func NewProcessingHandler(svc *service.ProcessingService) *ProcessingHandler {
	return &ProcessingHandler{service: svc}
}

// Process godoc
// @Summary Run the processing pipeline on a document
// @Tags Processing
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param request body dto.ProcessRequest false "Stage options"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Already processing"
// @Router /documents/{id}/process [post]
func (h *ProcessingHandler) Process(c *gin.Context) {
	var req dto.ProcessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid process options"))
			return
		}
	}
	result, err := h.service.Process(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reprocess godoc
// @Summary Re-run the pipeline on a failed document
// @Tags Processing
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param request body dto.ReprocessRequest false "Stage options"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Not reprocessable"
// @Router /documents/{id}/reprocess [post]
func (h *ProcessingHandler) Reprocess(c *gin.Context) {
	var req dto.ReprocessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reprocess options"))
			return
		}
	}
	result, err := h.service.Reprocess(c.Request.Context(), c.Param("id"), req.ProcessRequest, req.Force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Status godoc
// @Summary Get live processing status for a document
// @Tags Processing
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/status [get]
func (h *ProcessingHandler) Status(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Results godoc
// @Summary List per-stage results for a document
// @Tags Processing
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/results [get]
func (h *ProcessingHandler) Results(c *gin.Context) {
	results, err := h.service.GetResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
