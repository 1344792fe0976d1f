package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/services"
)

type ProgressHandler struct {
	progressService services.ProgressService
}

func NewProgressHandler(progressService services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

func (h *ProgressHandler) Start(c *gin.Context) {
	componentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	row, err := h.progressService.StartComponent(c.Request.Context(), componentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (h *ProgressHandler) Update(c *gin.Context) {
	componentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req struct {
		ProgressPercentage int `json:"progress_percentage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	row, err := h.progressService.UpdateProgress(c.Request.Context(), componentID, req.ProgressPercentage)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (h *ProgressHandler) Complete(c *gin.Context) {
	componentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	row, err := h.progressService.CompleteComponent(c.Request.Context(), componentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}

func (h *ProgressHandler) AddTime(c *gin.Context) {
	componentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	row, err := h.progressService.AddTimeSpent(c.Request.Context(), componentID, req.Seconds)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, row)
}
