package progression

import (
	"math"

	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/types"
)

// Rollup is the course-level state recomputed from component progress.
// It is a pure function of its inputs, re-applied on every component write
// rather than patched incrementally, so the stored CourseProgress can never
// drift from the component rows.
type Rollup struct {
	OverallProgressPercentage int
	Status                    types.CourseProgressStatus
}

// AggregateCourse rolls component progress up into course state. The course
// is COMPLETED iff every required-to-advance component is COMPLETED; merely
// attempting an assessment is not enough, it must be passed. Otherwise the
// course is IN_PROGRESS once anything has been touched.
func AggregateCourse(components []types.CourseComponent, progress map[uuid.UUID]*types.ComponentProgress) Rollup {
	if len(components) == 0 {
		return Rollup{Status: types.CourseProgressNotStarted}
	}

	completed := 0
	requiredDone := true
	touched := false
	for i := range components {
		status := statusOf(progress, components[i].ID)
		if status == types.ProgressCompleted {
			completed++
		}
		if status != types.ProgressNotStarted {
			touched = true
		}
		if components[i].RequiredToAdvance && status != types.ProgressCompleted {
			requiredDone = false
		}
	}

	percent := int(math.Round(100 * float64(completed) / float64(len(components))))
	switch {
	// touched guards the degenerate all-optional course: enrollment alone
	// must not mark it complete.
	case requiredDone && touched:
		return Rollup{OverallProgressPercentage: percent, Status: types.CourseProgressCompleted}
	case touched:
		return Rollup{OverallProgressPercentage: percent, Status: types.CourseProgressInProgress}
	default:
		return Rollup{OverallProgressPercentage: percent, Status: types.CourseProgressNotStarted}
	}
}

// ClampProgress merges an incoming percentage with the stored one.
// Progress is monotonic: out-of-order or duplicate client updates can never
// move it backwards, and it never exceeds 100.
func ClampProgress(current, incoming int) int {
	if incoming < current {
		return current
	}
	if incoming > 100 {
		return 100
	}
	return incoming
}
