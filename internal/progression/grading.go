package progression

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/types"
)

// AnswerSet maps a question id to the selected option ids.
type AnswerSet map[uuid.UUID][]uuid.UUID

// Result is the outcome of grading one attempt. Grading is deterministic:
// the same questions, order and answers always produce the same Result.
type Result struct {
	Score          int  `json:"score"`
	Passed         bool `json:"passed"`
	CorrectAnswers int  `json:"correct_answers"`
	TotalQuestions int  `json:"total_questions"`
}

// ValidateAnswer checks an incoming selection against the question bank
// before it is stored. Unknown question or option ids are rejected; an empty
// selection is allowed (the learner may clear an answer).
func ValidateAnswer(questions []types.Question, questionID uuid.UUID, selection []uuid.UUID) error {
	var question *types.Question
	for i := range questions {
		if questions[i].ID == questionID {
			question = &questions[i]
			break
		}
	}
	if question == nil {
		return fmt.Errorf("unknown question %s", questionID)
	}
	for _, optID := range selection {
		found := false
		for _, opt := range question.Options {
			if opt.ID == optID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown option %s for question %s", optID, questionID)
		}
	}
	return nil
}

// Grade scores the stored answers against the frozen snapshot order.
// A question is correct when the selected option set equals the correct
// option set exactly; unanswered questions earn nothing. The score is
// 100 * earned points / total points, rounded to the nearest integer.
func Grade(questions []types.Question, order []uuid.UUID, answers AnswerSet, passingScorePercent int) Result {
	byID := make(map[uuid.UUID]*types.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	totalPoints := 0
	earnedPoints := 0
	correct := 0
	total := 0
	for _, qid := range order {
		q, ok := byID[qid]
		if !ok {
			// Question removed from the bank after the snapshot was taken;
			// the snapshot still defines the attempt, so it counts as asked
			// but cannot be graded wrong against a missing key.
			continue
		}
		total++
		totalPoints += q.Points
		if answeredCorrectly(q, answers[qid]) {
			earnedPoints += q.Points
			correct++
		}
	}

	score := 0
	if totalPoints > 0 {
		score = int(math.Round(100 * float64(earnedPoints) / float64(totalPoints)))
	}
	return Result{
		Score:          score,
		Passed:         score >= passingScorePercent,
		CorrectAnswers: correct,
		TotalQuestions: total,
	}
}

func answeredCorrectly(q *types.Question, selection []uuid.UUID) bool {
	correct := make(map[uuid.UUID]bool)
	for _, opt := range q.Options {
		if opt.IsCorrect {
			correct[opt.ID] = true
		}
	}
	if len(selection) != len(correct) || len(correct) == 0 {
		return false
	}
	seen := make(map[uuid.UUID]bool, len(selection))
	for _, id := range selection {
		if !correct[id] || seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}
