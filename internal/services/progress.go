package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/progression"
	"github.com/safetrack/ehs-training-backend/internal/repos"
	"github.com/safetrack/ehs-training-backend/internal/requestdata"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type ProgressService interface {
	// StartComponent marks a component IN_PROGRESS for the learner,
	// creating the progress row if this is the first interaction. Starting
	// an already started or completed component is a no-op.
	StartComponent(ctx context.Context, componentID uuid.UUID) (*types.ComponentProgress, error)
	// UpdateProgress records a visitation percentage for a non-assessment
	// component. The stored percentage never decreases; 100 completes the
	// component. Assessment components reject direct updates — their
	// progress comes from graded attempts only.
	UpdateProgress(ctx context.Context, componentID uuid.UUID, percentage int) (*types.ComponentProgress, error)
	// CompleteComponent marks a non-assessment component done at 100%.
	CompleteComponent(ctx context.Context, componentID uuid.UUID) (*types.ComponentProgress, error)
	// AddTimeSpent accumulates engaged seconds on the component.
	AddTimeSpent(ctx context.Context, componentID uuid.UUID, seconds int) (*types.ComponentProgress, error)
	// RecordAssessmentResult applies a graded attempt to the learner's
	// progress: pass completes the component, fail marks it FAILED, and in
	// both cases the component counts as fully visited. Called by the
	// attempt engine and the expiry sweep, so it does not read the request
	// identity from context.
	RecordAssessmentResult(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID, result progression.Result) (*types.ComponentProgress, error)
}

type progressService struct {
	db         *gorm.DB
	log        *logger.Logger
	components repos.CourseComponentRepo
	progress   repos.ComponentProgressRepo
	attempts   repos.AttemptRepo
	courses    CourseService
	now        func() time.Time
}

func NewProgressService(
	db *gorm.DB,
	baseLog *logger.Logger,
	components repos.CourseComponentRepo,
	progress repos.ComponentProgressRepo,
	attempts repos.AttemptRepo,
	courses CourseService,
) ProgressService {
	return &progressService{
		db:         db,
		log:        baseLog.With("service", "ProgressService"),
		components: components,
		progress:   progress,
		attempts:   attempts,
		courses:    courses,
		now:        time.Now,
	}
}

// loadUnlockedComponent resolves the authenticated learner, the component,
// and its gating state, rejecting locked components.
func (s *progressService) loadUnlockedComponent(ctx context.Context, componentID uuid.UUID) (uuid.UUID, *types.CourseComponent, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, nil, ErrNotAuthenticated
	}

	components, err := s.components.GetByIDs(ctx, nil, []uuid.UUID{componentID})
	if err != nil {
		return uuid.Nil, nil, err
	}
	if len(components) == 0 || components[0] == nil {
		return uuid.Nil, nil, ErrNotFound.WithErr(fmt.Errorf("component %s not found", componentID))
	}
	component := components[0]

	state, err := loadCourseState(ctx, nil, rd.UserID, component.CourseID, s.components, s.progress, s.attempts)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if state.locked(componentID) {
		return uuid.Nil, nil, ErrComponentLocked
	}
	return rd.UserID, component, nil
}

func (s *progressService) ensureRow(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID) (*types.ComponentProgress, error) {
	row, err := s.progress.Get(ctx, tx, userID, componentID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	row = &types.ComponentProgress{
		ID:          uuid.New(),
		ComponentID: componentID,
		UserID:      userID,
		Status:      types.ProgressNotStarted,
	}
	created, err := s.progress.Create(ctx, tx, row)
	if err != nil {
		// Lost a race on the unique (user, component) index.
		if raced, getErr := s.progress.Get(ctx, tx, userID, componentID); getErr == nil && raced != nil {
			return raced, nil
		}
		return nil, err
	}
	return created, nil
}

func (s *progressService) StartComponent(ctx context.Context, componentID uuid.UUID) (*types.ComponentProgress, error) {
	userID, component, err := s.loadUnlockedComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}

	row, err := s.ensureRow(ctx, nil, userID, componentID)
	if err != nil {
		return nil, err
	}
	if row.Status != types.ProgressNotStarted {
		return row, nil
	}

	if err := s.progress.UpdateFields(ctx, nil, row.ID, map[string]any{
		"status": types.ProgressInProgress,
	}); err != nil {
		return nil, err
	}
	row.Status = types.ProgressInProgress

	if _, err := s.courses.Recompute(ctx, nil, userID, component.CourseID); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *progressService) UpdateProgress(ctx context.Context, componentID uuid.UUID, percentage int) (*types.ComponentProgress, error) {
	if percentage < 0 || percentage > 100 {
		return nil, ErrValidation.WithErr(fmt.Errorf("percentage %d out of range", percentage))
	}

	userID, component, err := s.loadUnlockedComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if component.Type.IsAssessment() {
		return nil, ErrValidation.WithErr(fmt.Errorf("assessment progress is attempt-driven"))
	}

	row, err := s.ensureRow(ctx, nil, userID, componentID)
	if err != nil {
		return nil, err
	}

	clamped := progression.ClampProgress(row.ProgressPercentage, percentage)
	updates := map[string]any{
		"progress_percentage": clamped,
	}
	status := row.Status
	var completedAt *time.Time
	if clamped >= 100 {
		if row.Status != types.ProgressCompleted {
			status = types.ProgressCompleted
			now := s.now()
			completedAt = &now
			updates["status"] = status
			updates["completed_at"] = now
		}
	} else if row.Status == types.ProgressNotStarted {
		status = types.ProgressInProgress
		updates["status"] = status
	}

	if err := s.progress.UpdateFields(ctx, nil, row.ID, updates); err != nil {
		return nil, err
	}
	row.ProgressPercentage = clamped
	row.Status = status
	if completedAt != nil {
		row.CompletedAt = completedAt
	}

	if _, err := s.courses.Recompute(ctx, nil, userID, component.CourseID); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *progressService) CompleteComponent(ctx context.Context, componentID uuid.UUID) (*types.ComponentProgress, error) {
	userID, component, err := s.loadUnlockedComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	if component.Type.IsAssessment() {
		return nil, ErrValidation.WithErr(fmt.Errorf("assessments complete through graded attempts"))
	}

	row, err := s.ensureRow(ctx, nil, userID, componentID)
	if err != nil {
		return nil, err
	}
	if row.Status == types.ProgressCompleted {
		return row, nil
	}

	now := s.now()
	if err := s.progress.UpdateFields(ctx, nil, row.ID, map[string]any{
		"status":              types.ProgressCompleted,
		"progress_percentage": 100,
		"completed_at":        now,
	}); err != nil {
		return nil, err
	}
	row.Status = types.ProgressCompleted
	row.ProgressPercentage = 100
	row.CompletedAt = &now
	s.log.Info("component completed", "component_id", componentID)

	if _, err := s.courses.Recompute(ctx, nil, userID, component.CourseID); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *progressService) AddTimeSpent(ctx context.Context, componentID uuid.UUID, seconds int) (*types.ComponentProgress, error) {
	if seconds <= 0 {
		return nil, ErrValidation.WithErr(fmt.Errorf("seconds must be positive"))
	}

	userID, _, err := s.loadUnlockedComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}

	row, err := s.ensureRow(ctx, nil, userID, componentID)
	if err != nil {
		return nil, err
	}

	if err := s.progress.UpdateFields(ctx, nil, row.ID, map[string]any{
		"time_spent_seconds": gorm.Expr("time_spent_seconds + ?", seconds),
	}); err != nil {
		return nil, err
	}
	row.TimeSpentSeconds += seconds
	return row, nil
}

func (s *progressService) RecordAssessmentResult(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID, result progression.Result) (*types.ComponentProgress, error) {
	components, err := s.components.GetByIDs(ctx, tx, []uuid.UUID{componentID})
	if err != nil {
		return nil, err
	}
	if len(components) == 0 || components[0] == nil {
		return nil, ErrNotFound.WithErr(fmt.Errorf("component %s not found", componentID))
	}
	component := components[0]

	row, err := s.ensureRow(ctx, tx, userID, componentID)
	if err != nil {
		return nil, err
	}

	status := types.ProgressFailed
	if result.Passed {
		status = types.ProgressCompleted
	}
	// A terminal attempt never downgrades an earlier pass.
	if row.Status == types.ProgressCompleted {
		status = types.ProgressCompleted
	}

	updates := map[string]any{
		"status":              status,
		"progress_percentage": 100,
		"last_score":          result.Score,
	}
	var completedAt *time.Time
	if status == types.ProgressCompleted && row.CompletedAt == nil {
		now := s.now()
		completedAt = &now
		updates["completed_at"] = now
	}
	if err := s.progress.UpdateFields(ctx, tx, row.ID, updates); err != nil {
		return nil, err
	}
	row.Status = status
	row.ProgressPercentage = 100
	score := result.Score
	row.LastScore = &score
	if completedAt != nil {
		row.CompletedAt = completedAt
	}
	s.log.Info("assessment result recorded",
		"component_id", componentID,
		"score", result.Score,
		"passed", result.Passed,
	)

	if _, err := s.courses.Recompute(ctx, tx, userID, component.CourseID); err != nil {
		return nil, err
	}
	return row, nil
}
