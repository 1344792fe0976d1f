package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/safetrack/ehs-training-backend/internal/events"
	"github.com/safetrack/ehs-training-backend/internal/locks"
	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/repos"
	"github.com/safetrack/ehs-training-backend/internal/requestdata"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

// In-memory repo fakes. They ignore the tx argument the way the real repos
// fall back to their own handle; service logic under test never depends on
// transactional behavior the fakes cannot model.

var (
	_ repos.CourseRepo            = (*fakeCourseRepo)(nil)
	_ repos.CourseComponentRepo   = (*fakeComponentRepo)(nil)
	_ repos.ComponentProgressRepo = (*fakeComponentProgressRepo)(nil)
	_ repos.CourseProgressRepo    = (*fakeCourseProgressRepo)(nil)
	_ repos.AttemptRepo           = (*fakeAttemptRepo)(nil)
	_ repos.CertificateRepo       = (*fakeCertificateRepo)(nil)
	_ events.Publisher            = (*capturePublisher)(nil)
)

type fakeCourseRepo struct {
	mu      sync.Mutex
	courses map[uuid.UUID]*types.Course
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{courses: map[uuid.UUID]*types.Course{}}
}

func (f *fakeCourseRepo) Create(_ context.Context, _ *gorm.DB, courses []*types.Course) ([]*types.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range courses {
		f.courses[c.ID] = c
	}
	return courses, nil
}

func (f *fakeCourseRepo) GetByIDs(_ context.Context, _ *gorm.DB, courseIDs []uuid.UUID) ([]*types.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Course
	for _, id := range courseIDs {
		if c, ok := f.courses[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCourseRepo) GetWithComponents(_ context.Context, _ *gorm.DB, courseID uuid.UUID) (*types.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.courses[courseID], nil
}

type fakeComponentRepo struct {
	mu         sync.Mutex
	components map[uuid.UUID]*types.CourseComponent
}

func newFakeComponentRepo() *fakeComponentRepo {
	return &fakeComponentRepo{components: map[uuid.UUID]*types.CourseComponent{}}
}

func (f *fakeComponentRepo) Create(_ context.Context, _ *gorm.DB, components []*types.CourseComponent) ([]*types.CourseComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range components {
		f.components[c.ID] = c
	}
	return components, nil
}

func (f *fakeComponentRepo) GetByIDs(_ context.Context, _ *gorm.DB, componentIDs []uuid.UUID) ([]*types.CourseComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.CourseComponent
	for _, id := range componentIDs {
		if c, ok := f.components[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComponentRepo) GetByCourseID(_ context.Context, _ *gorm.DB, courseID uuid.UUID) ([]*types.CourseComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.CourseComponent
	for _, c := range f.components {
		if c.CourseID == courseID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out, nil
}

func (f *fakeComponentRepo) GetWithQuestions(_ context.Context, _ *gorm.DB, componentID uuid.UUID) (*types.CourseComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.components[componentID], nil
}

type fakeComponentProgressRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.ComponentProgress
}

func newFakeComponentProgressRepo() *fakeComponentProgressRepo {
	return &fakeComponentProgressRepo{rows: map[uuid.UUID]*types.ComponentProgress{}}
}

func (f *fakeComponentProgressRepo) Create(_ context.Context, _ *gorm.DB, row *types.ComponentProgress) (*types.ComponentProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.UserID == row.UserID && existing.ComponentID == row.ComponentID {
			return nil, fmt.Errorf("duplicate key idx_user_component")
		}
	}
	stored := *row
	f.rows[row.ID] = &stored
	return row, nil
}

func (f *fakeComponentProgressRepo) Get(_ context.Context, _ *gorm.DB, userID, componentID uuid.UUID) (*types.ComponentProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.UserID == userID && row.ComponentID == componentID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeComponentProgressRepo) GetByUserAndComponentIDs(_ context.Context, _ *gorm.DB, userID uuid.UUID, componentIDs []uuid.UUID) ([]*types.ComponentProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(componentIDs))
	for _, id := range componentIDs {
		wanted[id] = true
	}
	var out []*types.ComponentProgress
	for _, row := range f.rows {
		if row.UserID == userID && wanted[row.ComponentID] {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeComponentProgressRepo) UpdateFields(_ context.Context, _ *gorm.DB, rowID uuid.UUID, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[rowID]
	if !ok {
		return fmt.Errorf("component progress %s not found", rowID)
	}
	for key, value := range updates {
		switch key {
		case "status":
			row.Status = value.(types.ProgressStatus)
		case "progress_percentage":
			row.ProgressPercentage = value.(int)
		case "completed_at":
			at := value.(time.Time)
			row.CompletedAt = &at
		case "last_score":
			score := value.(int)
			row.LastScore = &score
		case "time_spent_seconds":
			expr := value.(clause.Expr)
			row.TimeSpentSeconds += expr.Vars[0].(int)
		default:
			return fmt.Errorf("unexpected update key %q", key)
		}
	}
	return nil
}

type fakeCourseProgressRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.CourseProgress
}

func newFakeCourseProgressRepo() *fakeCourseProgressRepo {
	return &fakeCourseProgressRepo{rows: map[uuid.UUID]*types.CourseProgress{}}
}

func (f *fakeCourseProgressRepo) Create(_ context.Context, _ *gorm.DB, row *types.CourseProgress) (*types.CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.UserID == row.UserID && existing.CourseID == row.CourseID {
			return nil, fmt.Errorf("duplicate key idx_user_course")
		}
	}
	f.rows[row.ID] = row
	return row, nil
}

func (f *fakeCourseProgressRepo) Get(_ context.Context, _ *gorm.DB, userID, courseID uuid.UUID) (*types.CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.UserID == userID && row.CourseID == courseID {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeCourseProgressRepo) GetByUserID(_ context.Context, _ *gorm.DB, userID uuid.UUID) ([]*types.CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.CourseProgress
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeCourseProgressRepo) UpdateFields(_ context.Context, _ *gorm.DB, rowID uuid.UUID, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[rowID]
	if !ok {
		return fmt.Errorf("course progress %s not found", rowID)
	}
	for key, value := range updates {
		switch key {
		case "status":
			row.Status = value.(types.CourseProgressStatus)
		case "overall_progress_percentage":
			row.OverallProgressPercentage = value.(int)
		case "completed_date":
			at := value.(time.Time)
			row.CompletedDate = &at
		default:
			return fmt.Errorf("unexpected update key %q", key)
		}
	}
	return nil
}

type fakeAttemptRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.AssessmentAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{rows: map[uuid.UUID]*types.AssessmentAttempt{}}
}

func (f *fakeAttemptRepo) Create(_ context.Context, _ *gorm.DB, attempt *types.AssessmentAttempt) (*types.AssessmentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.UserID == attempt.UserID &&
			existing.ComponentID == attempt.ComponentID &&
			existing.Status == types.AttemptInProgress &&
			attempt.Status == types.AttemptInProgress {
			return nil, fmt.Errorf("duplicate key idx_active_attempt")
		}
	}
	f.rows[attempt.ID] = attempt
	return attempt, nil
}

func (f *fakeAttemptRepo) GetByID(_ context.Context, _ *gorm.DB, attemptID uuid.UUID) (*types.AssessmentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[attemptID], nil
}

func (f *fakeAttemptRepo) GetActive(_ context.Context, _ *gorm.DB, userID, componentID uuid.UUID) (*types.AssessmentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.UserID == userID && row.ComponentID == componentID && row.Status == types.AttemptInProgress {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeAttemptRepo) CountTerminal(_ context.Context, _ *gorm.DB, userID, componentID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.rows {
		if row.UserID == userID && row.ComponentID == componentID && row.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptRepo) CountTerminalByComponentIDs(_ context.Context, _ *gorm.DB, userID uuid.UUID, componentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(componentIDs))
	for _, id := range componentIDs {
		wanted[id] = true
	}
	out := map[uuid.UUID]int{}
	for _, row := range f.rows {
		if row.UserID == userID && wanted[row.ComponentID] && row.Status.Terminal() {
			out[row.ComponentID]++
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) UpdateFields(_ context.Context, _ *gorm.DB, attemptID uuid.UUID, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[attemptID]
	if !ok {
		return fmt.Errorf("attempt %s not found", attemptID)
	}
	return applyAttemptUpdates(row, updates)
}

func (f *fakeAttemptRepo) MarkTerminal(_ context.Context, _ *gorm.DB, attemptID uuid.UUID, updates map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[attemptID]
	if !ok || row.Status != types.AttemptInProgress {
		return false, nil
	}
	if err := applyAttemptUpdates(row, updates); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeAttemptRepo) ListExpiredInProgress(_ context.Context, _ *gorm.DB, now time.Time, limit int) ([]*types.AssessmentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AssessmentAttempt
	for _, row := range f.rows {
		if row.Status == types.AttemptInProgress && row.ExpiresAt != nil && row.ExpiresAt.Before(now) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func applyAttemptUpdates(row *types.AssessmentAttempt, updates map[string]any) error {
	for key, value := range updates {
		switch key {
		case "status":
			row.Status = value.(types.AttemptStatus)
		case "submitted_at":
			at := value.(time.Time)
			row.SubmittedAt = &at
		case "answers":
			row.Answers = value.(datatypes.JSON)
		case "score":
			score := value.(int)
			row.Score = &score
		case "passed":
			passed := value.(bool)
			row.Passed = &passed
		default:
			return fmt.Errorf("unexpected update key %q", key)
		}
	}
	return nil
}

type fakeCertificateRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.Certificate
}

func newFakeCertificateRepo() *fakeCertificateRepo {
	return &fakeCertificateRepo{rows: map[uuid.UUID]*types.Certificate{}}
}

func (f *fakeCertificateRepo) Create(_ context.Context, _ *gorm.DB, cert *types.Certificate) (*types.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rows {
		if existing.UserID == cert.UserID && existing.CourseID == cert.CourseID {
			return nil, fmt.Errorf("duplicate key idx_user_course_cert")
		}
	}
	f.rows[cert.ID] = cert
	return cert, nil
}

func (f *fakeCertificateRepo) Get(_ context.Context, _ *gorm.DB, userID, courseID uuid.UUID) (*types.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.UserID == userID && row.CourseID == courseID {
			return row, nil
		}
	}
	return nil, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.CourseCompleted
}

func (p *capturePublisher) PublishCourseCompleted(_ context.Context, evt events.CourseCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// testEnv wires the full service stack over the fakes with a controllable
// clock.
type testEnv struct {
	clock      *fixedClock
	courses    *fakeCourseRepo
	components *fakeComponentRepo
	compProg   *fakeComponentProgressRepo
	courseProg *fakeCourseProgressRepo
	attempts   *fakeAttemptRepo
	certs      *fakeCertificateRepo
	publisher  *capturePublisher

	certSvc     CertificateService
	courseSvc   CourseService
	progressSvc ProgressService
	attemptSvc  AttemptService
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func nopLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:      &fixedClock{now: time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)},
		courses:    newFakeCourseRepo(),
		components: newFakeComponentRepo(),
		compProg:   newFakeComponentProgressRepo(),
		courseProg: newFakeCourseProgressRepo(),
		attempts:   newFakeAttemptRepo(),
		certs:      newFakeCertificateRepo(),
		publisher:  &capturePublisher{},
	}
	log := nopLogger()

	env.certSvc = NewCertificateService(nil, log, env.certs, 0)
	env.certSvc.(*certificateService).now = env.clock.Now

	env.courseSvc = NewCourseService(nil, log, env.courses, env.components, env.compProg, env.courseProg, env.attempts, env.certSvc, env.publisher)
	env.courseSvc.(*courseService).now = env.clock.Now

	env.progressSvc = NewProgressService(nil, log, env.components, env.compProg, env.attempts, env.courseSvc)
	env.progressSvc.(*progressService).now = env.clock.Now

	env.attemptSvc = NewAttemptService(nil, log, env.components, env.compProg, env.attempts, env.progressSvc, locks.NewMemoryLocker())
	env.attemptSvc.(*attemptService).now = env.clock.Now

	return env
}

func (env *testEnv) ctxFor(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}

// seedCourse creates a published course with the given components already
// persisted in the fakes.
func (env *testEnv) seedCourse(components ...*types.CourseComponent) *types.Course {
	course := &types.Course{
		ID:     uuid.New(),
		Title:  "Lockout/Tagout Basics",
		Status: types.CoursePublished,
	}
	env.courses.Create(context.Background(), nil, []*types.Course{course})
	for i, c := range components {
		c.CourseID = course.ID
		c.SequenceOrder = i
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	env.components.Create(context.Background(), nil, components)
	return course
}

func materialComponent(title string) *types.CourseComponent {
	return &types.CourseComponent{
		ID:                uuid.New(),
		Type:              types.ComponentLearningMaterial,
		Title:             title,
		RequiredToAdvance: true,
	}
}

// quizComponent builds a post-assessment with n single-answer questions
// worth one point each; the first option of every question is correct.
func quizComponent(title string, n, passingScore int, timeLimitSeconds, maxAttempts *int) *types.CourseComponent {
	component := &types.CourseComponent{
		ID:                  uuid.New(),
		Type:                types.ComponentPostAssessment,
		Title:               title,
		RequiredToAdvance:   true,
		PassingScorePercent: passingScore,
		TimeLimitSeconds:    timeLimitSeconds,
		MaxAttempts:         maxAttempts,
	}
	for i := 0; i < n; i++ {
		q := types.Question{
			ID:          uuid.New(),
			ComponentID: component.ID,
			Text:        fmt.Sprintf("question %d", i+1),
			Type:        types.QuestionMultipleChoice,
			Points:      1,
			Position:    i,
		}
		for j := 0; j < 3; j++ {
			q.Options = append(q.Options, types.QuestionOption{
				ID:         uuid.New(),
				QuestionID: q.ID,
				Text:       fmt.Sprintf("option %d", j+1),
				IsCorrect:  j == 0,
				Position:   j,
			})
		}
		component.Questions = append(component.Questions, q)
	}
	return component
}

// correctAnswerFor returns the correct single-option selection for a
// question built by quizComponent.
func correctAnswerFor(q types.Question) []uuid.UUID {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return []uuid.UUID{opt.ID}
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }
