package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/services"
)

type CourseHandler struct {
	courseService services.CourseService
}

func NewCourseHandler(courseService services.CourseService) *CourseHandler {
	return &CourseHandler{courseService: courseService}
}

func (h *CourseHandler) Get(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	view, err := h.courseService.GetCourse(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *CourseHandler) Enroll(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	row, err := h.courseService.Enroll(c.Request.Context(), courseID)
	if err != nil {
		// Re-enrolling is a no-op that returns the existing enrollment.
		if errors.Is(err, services.ErrAlreadyEnrolled) {
			RespondOK(c, row)
			return
		}
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *CourseHandler) Progress(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	view, err := h.courseService.GetCourseProgress(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}
