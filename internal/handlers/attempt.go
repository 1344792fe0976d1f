package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/progression"
	"github.com/safetrack/ehs-training-backend/internal/services"
)

type AttemptHandler struct {
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

func (h *AttemptHandler) Start(c *gin.Context) {
	componentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	view, err := h.attemptService.Start(c.Request.Context(), componentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	questionID, err := uuid.Parse(c.Param("questionID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req struct {
		SelectedOptionIDs []uuid.UUID `json:"selected_option_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	view, err := h.attemptService.RecordAnswer(c.Request.Context(), attemptID, questionID, req.SelectedOptionIDs)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *AttemptHandler) Submit(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	// The body is optional; answers sent here override stored ones.
	var req struct {
		Answers progression.AnswerSet `json:"answers"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	view, err := h.attemptService.Submit(c.Request.Context(), attemptID, req.Answers)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *AttemptHandler) Get(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	view, err := h.attemptService.GetOwn(c.Request.Context(), attemptID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}
