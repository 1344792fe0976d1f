package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/locks"
	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/progression"
	"github.com/safetrack/ehs-training-backend/internal/repos"
	"github.com/safetrack/ehs-training-backend/internal/requestdata"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

const attemptStartLockTTL = 10 * time.Second

// AttemptOptionView is a question option stripped of its correctness flag.
type AttemptOptionView struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// AttemptQuestionView is one question as presented inside an attempt, in
// the attempt's frozen order.
type AttemptQuestionView struct {
	ID      uuid.UUID           `json:"id"`
	Text    string              `json:"text"`
	Type    types.QuestionType  `json:"type"`
	Points  int                 `json:"points"`
	Options []AttemptOptionView `json:"options"`
}

// AttemptView is the learner-facing shape of an attempt. Questions follow
// the frozen snapshot order and never carry answer keys; the graded fields
// are present only once the attempt is terminal.
type AttemptView struct {
	ID          uuid.UUID             `json:"id"`
	ComponentID uuid.UUID             `json:"component_id"`
	Status      types.AttemptStatus   `json:"status"`
	StartedAt   time.Time             `json:"started_at"`
	ExpiresAt   *time.Time            `json:"expires_at,omitempty"`
	SubmittedAt *time.Time            `json:"submitted_at,omitempty"`
	Questions   []AttemptQuestionView `json:"questions"`
	Answers     progression.AnswerSet `json:"answers"`
	Score       *int                  `json:"score,omitempty"`
	Passed      *bool                 `json:"passed,omitempty"`
}

type AttemptService interface {
	// Start opens a new attempt at an assessment component. At most one
	// IN_PROGRESS attempt exists per learner and component; a second start
	// fails with AttemptAlreadyActive, and starts beyond the component's
	// attempt limit fail with AttemptLimitExceeded.
	Start(ctx context.Context, componentID uuid.UUID) (*AttemptView, error)
	// RecordAnswer saves one answer on an active attempt. Re-answering a
	// question replaces the earlier selection; an empty selection clears it.
	RecordAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selection []uuid.UUID) (*AttemptView, error)
	// Submit grades the attempt. Answers sent with the submission take
	// precedence over previously stored ones. Submitting an already
	// terminal attempt returns the stored result unchanged; submitting
	// past the deadline finalizes the attempt from its stored answers and
	// fails with AttemptNotActive.
	Submit(ctx context.Context, attemptID uuid.UUID, finalAnswers progression.AnswerSet) (*AttemptView, error)
	// GetOwn returns one of the learner's attempts.
	GetOwn(ctx context.Context, attemptID uuid.UUID) (*AttemptView, error)
	// Expire auto-submits a single attempt whose deadline has passed,
	// grading the answers stored so far. Already-terminal attempts and
	// attempts still inside their deadline are left untouched.
	Expire(ctx context.Context, attemptID uuid.UUID) (bool, error)
	// SweepExpired auto-submits attempts whose deadline has passed,
	// grading whatever answers were stored. Returns how many attempts
	// this sweep finalized.
	SweepExpired(ctx context.Context, limit int) (int, error)
}

type attemptService struct {
	db         *gorm.DB
	log        *logger.Logger
	components repos.CourseComponentRepo
	compProg   repos.ComponentProgressRepo
	attempts   repos.AttemptRepo
	progress   ProgressService
	locker     locks.AttemptLocker
	now        func() time.Time
}

func NewAttemptService(
	db *gorm.DB,
	baseLog *logger.Logger,
	components repos.CourseComponentRepo,
	compProg repos.ComponentProgressRepo,
	attempts repos.AttemptRepo,
	progress ProgressService,
	locker locks.AttemptLocker,
) AttemptService {
	return &attemptService{
		db:         db,
		log:        baseLog.With("service", "AttemptService"),
		components: components,
		compProg:   compProg,
		attempts:   attempts,
		progress:   progress,
		locker:     locker,
		now:        time.Now,
	}
}

func (s *attemptService) Start(ctx context.Context, componentID uuid.UUID) (*AttemptView, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	component, err := s.components.GetWithQuestions(ctx, nil, componentID)
	if err != nil {
		return nil, err
	}
	if component == nil {
		return nil, ErrNotFound.WithErr(fmt.Errorf("component %s not found", componentID))
	}
	if !component.Type.IsAssessment() {
		return nil, ErrValidation.WithErr(fmt.Errorf("component %s is not an assessment", componentID))
	}
	if len(component.Questions) == 0 {
		return nil, ErrValidation.WithErr(fmt.Errorf("component %s has no questions", componentID))
	}

	state, err := loadCourseState(ctx, nil, rd.UserID, component.CourseID, s.components, s.compProg, s.attempts)
	if err != nil {
		return nil, err
	}
	if state.locked(componentID) {
		return nil, ErrComponentLocked
	}

	// The lock serializes concurrent starts for the same pair so the
	// active-attempt and limit checks below cannot both pass twice; the
	// partial unique index on (user_id, component_id) backstops it.
	lockKey := fmt.Sprintf("%s:%s", rd.UserID, componentID)
	acquired, err := s.locker.TryAcquire(ctx, lockKey, attemptStartLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrAttemptAlreadyActive
	}
	defer func() {
		if err := s.locker.Release(ctx, lockKey); err != nil {
			s.log.Warn("attempt lock release failed", "key", lockKey, "error", err)
		}
	}()

	active, err := s.attempts.GetActive(ctx, nil, rd.UserID, componentID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrAttemptAlreadyActive
	}

	if component.MaxAttempts != nil {
		terminal, err := s.attempts.CountTerminal(ctx, nil, rd.UserID, componentID)
		if err != nil {
			return nil, err
		}
		if terminal >= *component.MaxAttempts {
			return nil, ErrAttemptLimitExceeded
		}
	}

	attemptID := uuid.New()
	order := progression.Snapshot(component.Questions, component.RandomizeQuestions, progression.SeedFromUUID(attemptID))
	orderJSON, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	started := s.now()
	attempt := &types.AssessmentAttempt{
		ID:            attemptID,
		ComponentID:   componentID,
		UserID:        rd.UserID,
		Status:        types.AttemptInProgress,
		StartedAt:     started,
		QuestionOrder: datatypes.JSON(orderJSON),
		Answers:       datatypes.JSON([]byte("{}")),
	}
	if component.TimeLimitSeconds != nil {
		deadline := started.Add(time.Duration(*component.TimeLimitSeconds) * time.Second)
		attempt.ExpiresAt = &deadline
	}

	created, err := s.attempts.Create(ctx, nil, attempt)
	if err != nil {
		return nil, err
	}
	s.log.Info("attempt started",
		"attempt_id", created.ID,
		"component_id", componentID,
		"question_count", len(order),
	)
	return s.buildView(created, component)
}

func (s *attemptService) RecordAnswer(ctx context.Context, attemptID, questionID uuid.UUID, selection []uuid.UUID) (*AttemptView, error) {
	attempt, component, err := s.loadOwnAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.Terminal() {
		return nil, ErrAttemptNotActive
	}
	if attempt.ExpiresAt != nil && s.now().After(*attempt.ExpiresAt) {
		// The clock, not the sweep, is authoritative: a late answer
		// finalizes the attempt instead of landing on it.
		if _, err := s.finalizeExpired(ctx, attempt, component); err != nil {
			return nil, err
		}
		return nil, ErrAttemptNotActive
	}

	order, err := decodeOrder(attempt.QuestionOrder)
	if err != nil {
		return nil, err
	}
	if !containsID(order, questionID) {
		return nil, ErrValidation.WithErr(fmt.Errorf("question %s is not part of this attempt", questionID))
	}
	if err := progression.ValidateAnswer(component.Questions, questionID, selection); err != nil {
		return nil, ErrValidation.WithErr(err)
	}

	answers, err := decodeAnswers(attempt.Answers)
	if err != nil {
		return nil, err
	}
	if selection == nil {
		selection = []uuid.UUID{}
	}
	answers[questionID] = selection

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	if err := s.attempts.UpdateFields(ctx, nil, attempt.ID, map[string]any{
		"answers": datatypes.JSON(answersJSON),
	}); err != nil {
		return nil, err
	}
	attempt.Answers = datatypes.JSON(answersJSON)
	return s.buildView(attempt, component)
}

func (s *attemptService) Submit(ctx context.Context, attemptID uuid.UUID, finalAnswers progression.AnswerSet) (*AttemptView, error) {
	attempt, component, err := s.loadOwnAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.Terminal() {
		return s.buildView(attempt, component)
	}
	if attempt.ExpiresAt != nil && s.now().After(*attempt.ExpiresAt) {
		if _, err := s.finalizeExpired(ctx, attempt, component); err != nil {
			return nil, err
		}
		return nil, ErrAttemptNotActive
	}

	answers, err := decodeAnswers(attempt.Answers)
	if err != nil {
		return nil, err
	}
	for qid, selection := range finalAnswers {
		if err := progression.ValidateAnswer(component.Questions, qid, selection); err != nil {
			return nil, ErrValidation.WithErr(err)
		}
		answers[qid] = selection
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	order, err := decodeOrder(attempt.QuestionOrder)
	if err != nil {
		return nil, err
	}
	result := progression.Grade(component.Questions, order, answers, component.PassingScorePercent)

	submitted := s.now()
	won, err := s.attempts.MarkTerminal(ctx, nil, attempt.ID, map[string]any{
		"status":       types.AttemptSubmitted,
		"submitted_at": submitted,
		"answers":      datatypes.JSON(answersJSON),
		"score":        result.Score,
		"passed":       result.Passed,
	})
	if err != nil {
		return nil, err
	}
	if !won {
		// The expiry sweep finalized this attempt first; its stored
		// outcome stands.
		stored, err := s.attempts.GetByID(ctx, nil, attempt.ID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, ErrNotFound.WithErr(fmt.Errorf("attempt %s not found", attempt.ID))
		}
		return s.buildView(stored, component)
	}

	attempt.Status = types.AttemptSubmitted
	attempt.SubmittedAt = &submitted
	attempt.Answers = datatypes.JSON(answersJSON)
	attempt.Score = &result.Score
	attempt.Passed = &result.Passed
	s.log.Info("attempt submitted",
		"attempt_id", attempt.ID,
		"score", result.Score,
		"passed", result.Passed,
	)

	if _, err := s.progress.RecordAssessmentResult(ctx, nil, attempt.UserID, attempt.ComponentID, result); err != nil {
		return nil, err
	}
	return s.buildView(attempt, component)
}

func (s *attemptService) GetOwn(ctx context.Context, attemptID uuid.UUID) (*AttemptView, error) {
	attempt, component, err := s.loadOwnAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return s.buildView(attempt, component)
}

func (s *attemptService) Expire(ctx context.Context, attemptID uuid.UUID) (bool, error) {
	attempt, err := s.attempts.GetByID(ctx, nil, attemptID)
	if err != nil {
		return false, err
	}
	if attempt == nil {
		return false, ErrNotFound
	}
	if attempt.Status != types.AttemptInProgress {
		return false, nil
	}
	if attempt.ExpiresAt == nil || !s.now().After(*attempt.ExpiresAt) {
		return false, nil
	}
	component, err := s.components.GetWithQuestions(ctx, nil, attempt.ComponentID)
	if err != nil {
		return false, err
	}
	if component == nil {
		return false, ErrNotFound
	}
	return s.finalizeExpired(ctx, attempt, component)
}

func (s *attemptService) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.attempts.ListExpiredInProgress(ctx, nil, s.now(), limit)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, attempt := range expired {
		component, err := s.components.GetWithQuestions(ctx, nil, attempt.ComponentID)
		if err != nil {
			s.log.Error("expiry sweep load failed", "attempt_id", attempt.ID, "error", err)
			continue
		}
		if component == nil {
			continue
		}
		won, err := s.finalizeExpired(ctx, attempt, component)
		if err != nil {
			s.log.Error("expiry sweep finalize failed", "attempt_id", attempt.ID, "error", err)
			continue
		}
		if won {
			finalized++
		}
	}
	return finalized, nil
}

// finalizeExpired auto-submits an attempt whose deadline has passed, grading
// the answers stored so far. Reports whether this call performed the
// transition (false when a racing submit got there first).
func (s *attemptService) finalizeExpired(ctx context.Context, attempt *types.AssessmentAttempt, component *types.CourseComponent) (bool, error) {
	order, err := decodeOrder(attempt.QuestionOrder)
	if err != nil {
		return false, err
	}
	answers, err := decodeAnswers(attempt.Answers)
	if err != nil {
		return false, err
	}
	result := progression.Grade(component.Questions, order, answers, component.PassingScorePercent)

	submitted := s.now()
	won, err := s.attempts.MarkTerminal(ctx, nil, attempt.ID, map[string]any{
		"status":       types.AttemptAutoSubmitted,
		"submitted_at": submitted,
		"score":        result.Score,
		"passed":       result.Passed,
	})
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	attempt.Status = types.AttemptAutoSubmitted
	attempt.SubmittedAt = &submitted
	attempt.Score = &result.Score
	attempt.Passed = &result.Passed
	s.log.Info("attempt auto-submitted",
		"attempt_id", attempt.ID,
		"score", result.Score,
		"passed", result.Passed,
	)

	if _, err := s.progress.RecordAssessmentResult(ctx, nil, attempt.UserID, attempt.ComponentID, result); err != nil {
		return true, err
	}
	return true, nil
}

func (s *attemptService) loadOwnAttempt(ctx context.Context, attemptID uuid.UUID) (*types.AssessmentAttempt, *types.CourseComponent, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, nil, ErrNotAuthenticated
	}

	attempt, err := s.attempts.GetByID(ctx, nil, attemptID)
	if err != nil {
		return nil, nil, err
	}
	// Another learner's attempt reads as absent, not forbidden.
	if attempt == nil || attempt.UserID != rd.UserID {
		return nil, nil, ErrNotFound.WithErr(fmt.Errorf("attempt %s not found", attemptID))
	}

	component, err := s.components.GetWithQuestions(ctx, nil, attempt.ComponentID)
	if err != nil {
		return nil, nil, err
	}
	if component == nil {
		return nil, nil, ErrNotFound.WithErr(fmt.Errorf("component %s not found", attempt.ComponentID))
	}
	return attempt, component, nil
}

func (s *attemptService) buildView(attempt *types.AssessmentAttempt, component *types.CourseComponent) (*AttemptView, error) {
	order, err := decodeOrder(attempt.QuestionOrder)
	if err != nil {
		return nil, err
	}
	answers, err := decodeAnswers(attempt.Answers)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*types.Question, len(component.Questions))
	for i := range component.Questions {
		byID[component.Questions[i].ID] = &component.Questions[i]
	}

	questions := make([]AttemptQuestionView, 0, len(order))
	for _, qid := range order {
		q, ok := byID[qid]
		if !ok {
			continue
		}
		options := make([]AttemptOptionView, len(q.Options))
		for i, opt := range q.Options {
			options[i] = AttemptOptionView{ID: opt.ID, Text: opt.Text}
		}
		questions = append(questions, AttemptQuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Type:    q.Type,
			Points:  q.Points,
			Options: options,
		})
	}

	return &AttemptView{
		ID:          attempt.ID,
		ComponentID: attempt.ComponentID,
		Status:      attempt.Status,
		StartedAt:   attempt.StartedAt,
		ExpiresAt:   attempt.ExpiresAt,
		SubmittedAt: attempt.SubmittedAt,
		Questions:   questions,
		Answers:     answers,
		Score:       attempt.Score,
		Passed:      attempt.Passed,
	}, nil
}

func decodeOrder(raw datatypes.JSON) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return []uuid.UUID{}, nil
	}
	var order []uuid.UUID
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("decode question order: %w", err)
	}
	return order, nil
}

func decodeAnswers(raw datatypes.JSON) (progression.AnswerSet, error) {
	answers := progression.AnswerSet{}
	if len(raw) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return answers, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
