package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/progression"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

func TestStartComponent(t *testing.T) {
	env := newTestEnv(t)
	material := materialComponent("hazard identification")
	course := env.seedCourse(material)
	userID := uuid.New()
	ctx := env.ctxFor(userID)

	row, err := env.progressSvc.StartComponent(ctx, material.ID)
	if err != nil {
		t.Fatalf("StartComponent: %v", err)
	}
	if row.Status != types.ProgressInProgress {
		t.Fatalf("status = %s, want %s", row.Status, types.ProgressInProgress)
	}

	// Restarting is a no-op.
	again, err := env.progressSvc.StartComponent(ctx, material.ID)
	if err != nil {
		t.Fatalf("second StartComponent: %v", err)
	}
	if again.ID != row.ID {
		t.Fatalf("restart created a second row: %s vs %s", again.ID, row.ID)
	}

	courseRow, err := env.courseProg.Get(ctx, nil, userID, course.ID)
	if err != nil || courseRow == nil {
		t.Fatalf("course progress missing: %v", err)
	}
	if courseRow.Status != types.CourseProgressInProgress {
		t.Fatalf("course status = %s, want in_progress", courseRow.Status)
	}
}

func TestUpdateProgress(t *testing.T) {
	env := newTestEnv(t)
	material := materialComponent("ppe walkthrough")
	env.seedCourse(material)
	userID := uuid.New()
	ctx := env.ctxFor(userID)

	row, err := env.progressSvc.UpdateProgress(ctx, material.ID, 40)
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if row.ProgressPercentage != 40 || row.Status != types.ProgressInProgress {
		t.Fatalf("got %d/%s, want 40/in_progress", row.ProgressPercentage, row.Status)
	}

	// The stored percentage never regresses.
	row, err = env.progressSvc.UpdateProgress(ctx, material.ID, 10)
	if err != nil {
		t.Fatalf("UpdateProgress regress: %v", err)
	}
	if row.ProgressPercentage != 40 {
		t.Fatalf("percentage regressed to %d", row.ProgressPercentage)
	}

	row, err = env.progressSvc.UpdateProgress(ctx, material.ID, 100)
	if err != nil {
		t.Fatalf("UpdateProgress to 100: %v", err)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("status = %s, want completed", row.Status)
	}
	if row.CompletedAt == nil || !row.CompletedAt.Equal(env.clock.Now()) {
		t.Fatalf("completed_at = %v, want %v", row.CompletedAt, env.clock.Now())
	}

	for _, bad := range []int{-1, 101} {
		if _, err := env.progressSvc.UpdateProgress(ctx, material.ID, bad); !errors.Is(err, ErrValidation) {
			t.Fatalf("UpdateProgress(%d) err = %v, want %v", bad, err, ErrValidation)
		}
	}
}

func TestUpdateProgressRejectsAssessment(t *testing.T) {
	env := newTestEnv(t)
	quiz := quizComponent("final quiz", 1, 50, nil, nil)
	env.seedCourse(quiz)
	ctx := env.ctxFor(uuid.New())

	if _, err := env.progressSvc.UpdateProgress(ctx, quiz.ID, 50); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want %v", err, ErrValidation)
	}
	if _, err := env.progressSvc.CompleteComponent(ctx, quiz.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("CompleteComponent err = %v, want %v", err, ErrValidation)
	}
}

func TestUpdateProgressLockedComponent(t *testing.T) {
	env := newTestEnv(t)
	first := materialComponent("module one")
	second := materialComponent("module two")
	env.seedCourse(first, second)
	ctx := env.ctxFor(uuid.New())

	if _, err := env.progressSvc.UpdateProgress(ctx, second.ID, 10); !errors.Is(err, ErrComponentLocked) {
		t.Fatalf("err = %v, want %v", err, ErrComponentLocked)
	}

	if _, err := env.progressSvc.CompleteComponent(ctx, first.ID); err != nil {
		t.Fatalf("CompleteComponent: %v", err)
	}
	if _, err := env.progressSvc.UpdateProgress(ctx, second.ID, 10); err != nil {
		t.Fatalf("UpdateProgress after unlock: %v", err)
	}
}

func TestOptionalComponentDoesNotGate(t *testing.T) {
	env := newTestEnv(t)
	optional := materialComponent("bonus reading")
	optional.RequiredToAdvance = false
	second := materialComponent("module two")
	env.seedCourse(optional, second)
	ctx := env.ctxFor(uuid.New())

	// An optional predecessor never locks its successor.
	if _, err := env.progressSvc.UpdateProgress(ctx, second.ID, 25); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
}

func TestCompleteComponentIdempotent(t *testing.T) {
	env := newTestEnv(t)
	material := materialComponent("spill response")
	env.seedCourse(material)
	ctx := env.ctxFor(uuid.New())

	first, err := env.progressSvc.CompleteComponent(ctx, material.ID)
	if err != nil {
		t.Fatalf("CompleteComponent: %v", err)
	}
	completedAt := *first.CompletedAt

	env.clock.Advance(time.Second)

	second, err := env.progressSvc.CompleteComponent(ctx, material.ID)
	if err != nil {
		t.Fatalf("second CompleteComponent: %v", err)
	}
	if !second.CompletedAt.Equal(completedAt) {
		t.Fatalf("re-completion rewrote completed_at: %v vs %v", second.CompletedAt, completedAt)
	}
}

func TestAddTimeSpent(t *testing.T) {
	env := newTestEnv(t)
	material := materialComponent("chemical storage")
	env.seedCourse(material)
	ctx := env.ctxFor(uuid.New())

	if _, err := env.progressSvc.AddTimeSpent(ctx, material.ID, 90); err != nil {
		t.Fatalf("AddTimeSpent: %v", err)
	}
	row, err := env.progressSvc.AddTimeSpent(ctx, material.ID, 30)
	if err != nil {
		t.Fatalf("second AddTimeSpent: %v", err)
	}
	if row.TimeSpentSeconds != 120 {
		t.Fatalf("time spent = %d, want 120", row.TimeSpentSeconds)
	}

	if _, err := env.progressSvc.AddTimeSpent(ctx, material.ID, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero seconds err = %v, want %v", err, ErrValidation)
	}
	if _, err := env.progressSvc.AddTimeSpent(ctx, material.ID, -5); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative seconds err = %v, want %v", err, ErrValidation)
	}
}

func TestRecordAssessmentResult(t *testing.T) {
	env := newTestEnv(t)
	quiz := quizComponent("final quiz", 2, 70, nil, nil)
	env.seedCourse(quiz)
	userID := uuid.New()
	ctx := env.ctxFor(userID)

	// Fail first.
	row, err := env.progressSvc.RecordAssessmentResult(ctx, nil, userID, quiz.ID, progression.Result{Score: 50, Passed: false, TotalQuestions: 2})
	if err != nil {
		t.Fatalf("RecordAssessmentResult fail: %v", err)
	}
	if row.Status != types.ProgressFailed {
		t.Fatalf("status = %s, want failed", row.Status)
	}
	if row.ProgressPercentage != 100 {
		t.Fatalf("failed assessment still counts as visited, got %d", row.ProgressPercentage)
	}
	if row.LastScore == nil || *row.LastScore != 50 {
		t.Fatalf("last score = %v, want 50", row.LastScore)
	}

	// Then pass on the retry.
	row, err = env.progressSvc.RecordAssessmentResult(ctx, nil, userID, quiz.ID, progression.Result{Score: 100, Passed: true, CorrectAnswers: 2, TotalQuestions: 2})
	if err != nil {
		t.Fatalf("RecordAssessmentResult pass: %v", err)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("status = %s, want completed", row.Status)
	}

	// A later failing attempt never downgrades the pass.
	row, err = env.progressSvc.RecordAssessmentResult(ctx, nil, userID, quiz.ID, progression.Result{Score: 20, Passed: false, TotalQuestions: 2})
	if err != nil {
		t.Fatalf("RecordAssessmentResult after pass: %v", err)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("pass was downgraded to %s", row.Status)
	}
	if row.LastScore == nil || *row.LastScore != 20 {
		t.Fatalf("last score should still track the latest attempt, got %v", row.LastScore)
	}
}
