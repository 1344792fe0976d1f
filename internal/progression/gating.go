package progression

import (
	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/types"
)

// AccessEntry reports the gating state of one component. Locked is always
// derived, never stored: it is recomputed from current progress on every
// call so there is no stale-lock state to invalidate.
type AccessEntry struct {
	ComponentID   uuid.UUID `json:"component_id"`
	SequenceOrder int       `json:"sequence_order"`
	Locked        bool      `json:"locked"`
	Blocked       bool      `json:"blocked"`
}

// CourseAccess is the resolved gating state for one learner across a
// course's ordered components. Blocked is set when a locked component's
// required predecessor is FAILED with its attempt limit exhausted: the
// learner cannot progress and the condition is reported rather than
// silently bypassed.
type CourseAccess struct {
	Entries []AccessEntry `json:"entries"`
	Blocked bool          `json:"blocked"`
}

// Resolve computes per-component accessibility. components must be ordered
// by SequenceOrder (the repo reads them that way); progress may be sparse —
// a missing row means NOT_STARTED. terminalAttempts counts non-IN_PROGRESS
// attempts per assessment component, used only for blocked reporting.
func Resolve(components []types.CourseComponent, progress map[uuid.UUID]*types.ComponentProgress, terminalAttempts map[uuid.UUID]int) CourseAccess {
	access := CourseAccess{Entries: make([]AccessEntry, len(components))}
	for i := range components {
		entry := AccessEntry{
			ComponentID:   components[i].ID,
			SequenceOrder: components[i].SequenceOrder,
			Locked:        IsLocked(components, progress, i),
		}
		if entry.Locked {
			prev := components[i-1]
			if statusOf(progress, prev.ID) == types.ProgressFailed && attemptsExhausted(prev, terminalAttempts) {
				entry.Blocked = true
				access.Blocked = true
			}
		}
		access.Entries[i] = entry
	}
	return access
}

// IsLocked reports whether the component at index i is inaccessible.
// Index 0 is always open; any later component is open iff its predecessor
// is not required to advance or has been completed.
func IsLocked(components []types.CourseComponent, progress map[uuid.UUID]*types.ComponentProgress, i int) bool {
	if i <= 0 || i >= len(components) {
		return false
	}
	prev := components[i-1]
	if !prev.RequiredToAdvance {
		return false
	}
	return statusOf(progress, prev.ID) != types.ProgressCompleted
}

func statusOf(progress map[uuid.UUID]*types.ComponentProgress, componentID uuid.UUID) types.ProgressStatus {
	if p, ok := progress[componentID]; ok && p != nil {
		return p.Status
	}
	return types.ProgressNotStarted
}

func attemptsExhausted(component types.CourseComponent, terminalAttempts map[uuid.UUID]int) bool {
	if component.MaxAttempts == nil {
		return false
	}
	return terminalAttempts[component.ID] >= *component.MaxAttempts
}
