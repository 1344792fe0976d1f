package progression

import (
	"encoding/binary"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/safetrack/ehs-training-backend/internal/types"
)

// Snapshot returns the frozen question presentation order for a new attempt.
// The order is derived from the bank's authored positions and, when
// randomize is set, shuffled with the given seed so the same attempt always
// reproduces the same order.
func Snapshot(questions []types.Question, randomize bool, seed int64) []uuid.UUID {
	sorted := make([]types.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	order := make([]uuid.UUID, len(sorted))
	for i, q := range sorted {
		order[i] = q.ID
	}
	if randomize && len(order) > 1 {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}

// SeedFromUUID folds an attempt id into a shuffle seed.
func SeedFromUUID(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]))
}
