package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/events"
	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/progression"
	"github.com/safetrack/ehs-training-backend/internal/repos"
	"github.com/safetrack/ehs-training-backend/internal/requestdata"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

// ComponentProgressEntry pairs one component with the learner's progress
// and its current gating state. Progress is nil when the learner has not
// touched the component yet.
type ComponentProgressEntry struct {
	Component *types.CourseComponent   `json:"component"`
	Progress  *types.ComponentProgress `json:"progress,omitempty"`
	Locked    bool                     `json:"locked"`
	Blocked   bool                     `json:"blocked"`
}

// CourseProgressView is the learner-facing rollup: the derived course row
// plus per-component progress in sequence order.
type CourseProgressView struct {
	CourseProgress *types.CourseProgress    `json:"course_progress"`
	Components     []ComponentProgressEntry `json:"components"`
	Blocked        bool                     `json:"blocked"`
}

type CourseService interface {
	// Enroll creates the learner's CourseProgress row. A second enrollment
	// fails with AlreadyEnrolled; the handler may treat that as a no-op.
	Enroll(ctx context.Context, courseID uuid.UUID) (*types.CourseProgress, error)
	GetCourse(ctx context.Context, courseID uuid.UUID) (*CourseProgressView, error)
	GetCourseProgress(ctx context.Context, courseID uuid.UUID) (*CourseProgressView, error)
	// Recompute re-derives the course row from the component rows. It is
	// called after every component-progress write; the stored row is
	// replaced, never incrementally patched. The transition into COMPLETED
	// emits the completion event and issues the certificate.
	Recompute(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.CourseProgress, error)
}

type courseService struct {
	db           *gorm.DB
	log          *logger.Logger
	courseRepo   repos.CourseRepo
	components   repos.CourseComponentRepo
	compProgress repos.ComponentProgressRepo
	courseProg   repos.CourseProgressRepo
	attempts     repos.AttemptRepo
	certs        CertificateService
	publisher    events.Publisher
	now          func() time.Time
}

func NewCourseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	components repos.CourseComponentRepo,
	compProgress repos.ComponentProgressRepo,
	courseProg repos.CourseProgressRepo,
	attempts repos.AttemptRepo,
	certs CertificateService,
	publisher events.Publisher,
) CourseService {
	return &courseService{
		db:           db,
		log:          baseLog.With("service", "CourseService"),
		courseRepo:   courseRepo,
		components:   components,
		compProgress: compProgress,
		courseProg:   courseProg,
		attempts:     attempts,
		certs:        certs,
		publisher:    publisher,
		now:          time.Now,
	}
}

func (s *courseService) Enroll(ctx context.Context, courseID uuid.UUID) (*types.CourseProgress, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	courses, err := s.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{courseID})
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 || courses[0] == nil {
		return nil, ErrNotFound.WithErr(fmt.Errorf("course %s not found", courseID))
	}
	if courses[0].Status != types.CoursePublished {
		return nil, ErrValidation.WithErr(fmt.Errorf("course %s is not published", courseID))
	}

	existing, err := s.courseProg.Get(ctx, nil, rd.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, ErrAlreadyEnrolled
	}

	row := &types.CourseProgress{
		ID:             uuid.New(),
		CourseID:       courseID,
		UserID:         rd.UserID,
		Status:         types.CourseProgressNotStarted,
		EnrollmentDate: s.now(),
	}
	created, err := s.courseProg.Create(ctx, nil, row)
	if err != nil {
		// Concurrent enrolls race on the unique index; surface the stored
		// row through the same typed error so the handler policy applies.
		if raced, getErr := s.courseProg.Get(ctx, nil, rd.UserID, courseID); getErr == nil && raced != nil {
			return raced, ErrAlreadyEnrolled
		}
		return nil, err
	}
	s.log.Info("learner enrolled", "course_id", courseID)
	return created, nil
}

func (s *courseService) GetCourse(ctx context.Context, courseID uuid.UUID) (*CourseProgressView, error) {
	return s.GetCourseProgress(ctx, courseID)
}

func (s *courseService) GetCourseProgress(ctx context.Context, courseID uuid.UUID) (*CourseProgressView, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	courses, err := s.courseRepo.GetByIDs(ctx, nil, []uuid.UUID{courseID})
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 || courses[0] == nil {
		return nil, ErrNotFound.WithErr(fmt.Errorf("course %s not found", courseID))
	}

	state, err := loadCourseState(ctx, nil, rd.UserID, courseID, s.components, s.compProgress, s.attempts)
	if err != nil {
		return nil, err
	}

	courseProgress, err := s.courseProg.Get(ctx, nil, rd.UserID, courseID)
	if err != nil {
		return nil, err
	}

	view := &CourseProgressView{
		CourseProgress: courseProgress,
		Components:     make([]ComponentProgressEntry, len(state.components)),
		Blocked:        state.access.Blocked,
	}
	for i := range state.components {
		component := state.components[i]
		component.Questions = nil // banks never travel with progress reads
		view.Components[i] = ComponentProgressEntry{
			Component: &component,
			Progress:  state.progress[component.ID],
			Locked:    state.access.Entries[i].Locked,
			Blocked:   state.access.Entries[i].Blocked,
		}
	}
	return view, nil
}

func (s *courseService) Recompute(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.CourseProgress, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, ErrValidation.WithErr(fmt.Errorf("missing user or course id"))
	}

	state, err := loadCourseState(ctx, tx, userID, courseID, s.components, s.compProgress, s.attempts)
	if err != nil {
		return nil, err
	}
	rollup := progression.AggregateCourse(state.components, state.progress)

	row, err := s.courseProg.Get(ctx, tx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		// First interaction without an explicit enroll still produces the
		// derived row. It is born NOT_STARTED so a rollup that is already
		// COMPLETED registers as a transition below.
		row = &types.CourseProgress{
			ID:             uuid.New(),
			CourseID:       courseID,
			UserID:         userID,
			Status:         types.CourseProgressNotStarted,
			EnrollmentDate: s.now(),
		}
		if _, err := s.courseProg.Create(ctx, tx, row); err != nil {
			return nil, err
		}
	}

	completedNow := rollup.Status == types.CourseProgressCompleted && row.Status != types.CourseProgressCompleted

	updates := map[string]any{
		"overall_progress_percentage": rollup.OverallProgressPercentage,
		"status":                      rollup.Status,
	}
	var completedAt time.Time
	if completedNow {
		completedAt = s.now()
		updates["completed_date"] = completedAt
	}
	if err := s.courseProg.UpdateFields(ctx, tx, row.ID, updates); err != nil {
		return nil, err
	}
	row.OverallProgressPercentage = rollup.OverallProgressPercentage
	row.Status = rollup.Status
	if completedNow {
		row.CompletedDate = &completedAt

		s.log.Info("course completed", "course_id", courseID)
		if s.publisher != nil {
			if err := s.publisher.PublishCourseCompleted(ctx, events.CourseCompleted{
				UserID:      userID,
				CourseID:    courseID,
				CompletedAt: completedAt,
			}); err != nil {
				s.log.Warn("completion event publish failed", "course_id", courseID, "error", err)
			}
		}
		if _, err := s.certs.Issue(ctx, tx, userID, courseID); err != nil {
			s.log.Error("certificate issuance failed", "course_id", courseID, "error", err)
			return nil, err
		}
	}
	return row, nil
}
