package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type AttemptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *types.AssessmentAttempt) (*types.AssessmentAttempt, error)
	GetByID(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (*types.AssessmentAttempt, error)
	// GetActive returns the single IN_PROGRESS attempt for the pair, or nil.
	GetActive(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID) (*types.AssessmentAttempt, error)
	// CountTerminal counts finished (non IN_PROGRESS) attempts for the pair,
	// used against the component's attempt limit.
	CountTerminal(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID) (int, error)
	// CountTerminalByComponentIDs returns terminal attempt counts per
	// component for one user, for gating's blocked reporting.
	CountTerminalByComponentIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, componentIDs []uuid.UUID) (map[uuid.UUID]int, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID, updates map[string]any) error
	// MarkTerminal applies updates only while the attempt is still
	// IN_PROGRESS and reports whether this call won the transition. The
	// submit path and the expiry sweep race on the same row; exactly one
	// of them finalizes it.
	MarkTerminal(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID, updates map[string]any) (bool, error)
	// ListExpiredInProgress returns attempts still IN_PROGRESS whose
	// deadline has passed, for the expiry sweep.
	ListExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.AssessmentAttempt, error)
}

type attemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttemptRepo(db *gorm.DB, baseLog *logger.Logger) AttemptRepo {
	return &attemptRepo{db: db, log: baseLog.With("repo", "AttemptRepo")}
}

func (r *attemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *types.AssessmentAttempt) (*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if attempt == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *attemptRepo) GetByID(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if attemptID == uuid.Nil {
		return nil, nil
	}

	var result types.AssessmentAttempt
	err := transaction.WithContext(ctx).
		Where("id = ?", attemptID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *attemptRepo) GetActive(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID) (*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.AssessmentAttempt
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND component_id = ? AND status = ?", userID, componentID, types.AttemptInProgress).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *attemptRepo) CountTerminal(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.AssessmentAttempt{}).
		Where("user_id = ? AND component_id = ? AND status <> ?", userID, componentID, types.AttemptInProgress).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *attemptRepo) CountTerminalByComponentIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, componentIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	out := make(map[uuid.UUID]int, len(componentIDs))
	if userID == uuid.Nil || len(componentIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ComponentID uuid.UUID
		Total       int
	}
	if err := transaction.WithContext(ctx).
		Model(&types.AssessmentAttempt{}).
		Select("component_id, COUNT(*) AS total").
		Where("user_id = ? AND component_id IN ? AND status <> ?", userID, componentIDs, types.AttemptInProgress).
		Group("component_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ComponentID] = row.Total
	}
	return out, nil
}

func (r *attemptRepo) UpdateFields(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if attemptID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.AssessmentAttempt{}).
		Where("id = ?", attemptID).
		Updates(updates).Error
}

func (r *attemptRepo) MarkTerminal(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID, updates map[string]any) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if attemptID == uuid.Nil || len(updates) == 0 {
		return false, nil
	}
	result := transaction.WithContext(ctx).
		Model(&types.AssessmentAttempt{}).
		Where("id = ? AND status = ?", attemptID, types.AttemptInProgress).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *attemptRepo) ListExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.AssessmentAttempt, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.AssessmentAttempt
	q := transaction.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", types.AttemptInProgress, now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
