package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/progression"
	"github.com/safetrack/ehs-training-backend/internal/repos"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

// courseState is everything gating needs for one learner and course: the
// ordered components, the learner's sparse progress rows, and the resolved
// access entries. Loaded fresh on every call — locks are always derived,
// never cached.
type courseState struct {
	components []types.CourseComponent
	progress   map[uuid.UUID]*types.ComponentProgress
	access     progression.CourseAccess
}

func (cs *courseState) indexOf(componentID uuid.UUID) int {
	for i := range cs.components {
		if cs.components[i].ID == componentID {
			return i
		}
	}
	return -1
}

func (cs *courseState) locked(componentID uuid.UUID) bool {
	i := cs.indexOf(componentID)
	if i < 0 {
		return false
	}
	return cs.access.Entries[i].Locked
}

func loadCourseState(
	ctx context.Context,
	tx *gorm.DB,
	userID, courseID uuid.UUID,
	componentRepo repos.CourseComponentRepo,
	progressRepo repos.ComponentProgressRepo,
	attemptRepo repos.AttemptRepo,
) (*courseState, error) {
	componentRows, err := componentRepo.GetByCourseID(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	components := make([]types.CourseComponent, len(componentRows))
	componentIDs := make([]uuid.UUID, len(componentRows))
	for i, c := range componentRows {
		components[i] = *c
		componentIDs[i] = c.ID
	}

	progressRows, err := progressRepo.GetByUserAndComponentIDs(ctx, tx, userID, componentIDs)
	if err != nil {
		return nil, err
	}
	progress := make(map[uuid.UUID]*types.ComponentProgress, len(progressRows))
	for _, row := range progressRows {
		progress[row.ComponentID] = row
	}

	terminal, err := attemptRepo.CountTerminalByComponentIDs(ctx, tx, userID, componentIDs)
	if err != nil {
		return nil, err
	}

	return &courseState{
		components: components,
		progress:   progress,
		access:     progression.Resolve(components, progress, terminal),
	}, nil
}
