package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/requestdata"
	"github.com/safetrack/ehs-training-backend/internal/services"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type CertificateHandler struct {
	certificateService services.CertificateService
	courseService      services.CourseService
}

func NewCertificateHandler(certificateService services.CertificateService, courseService services.CourseService) *CertificateHandler {
	return &CertificateHandler{
		certificateService: certificateService,
		courseService:      courseService,
	}
}

func (h *CertificateHandler) Get(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	cert, err := h.certificateService.GetOwn(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if cert == nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("no certificate for course %s", courseID))
		return
	}
	RespondOK(c, cert)
}

// Issue requests a certificate explicitly. Completion already issues one
// automatically, so in the common case this returns the stored row; it
// exists for re-fetch flows where the completion event was missed.
func (h *CertificateHandler) Issue(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	ctx := c.Request.Context()
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		RespondServiceError(c, services.ErrNotAuthenticated)
		return
	}

	view, err := h.courseService.GetCourseProgress(ctx, courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if view.CourseProgress == nil || view.CourseProgress.Status != types.CourseProgressCompleted {
		RespondError(c, http.StatusConflict, "course_not_completed",
			fmt.Errorf("course %s is not completed", courseID))
		return
	}

	cert, err := h.certificateService.Issue(ctx, nil, rd.UserID, courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, cert)
}
