package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type ComponentProgressRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ComponentProgress) (*types.ComponentProgress, error)
	// Get returns the row for the pair, or nil when the learner has not
	// touched the component yet (rows are created lazily).
	Get(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID) (*types.ComponentProgress, error)
	GetByUserAndComponentIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, componentIDs []uuid.UUID) ([]*types.ComponentProgress, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, rowID uuid.UUID, updates map[string]any) error
}

type componentProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComponentProgressRepo(db *gorm.DB, baseLog *logger.Logger) ComponentProgressRepo {
	return &componentProgressRepo{db: db, log: baseLog.With("repo", "ComponentProgressRepo")}
}

func (r *componentProgressRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ComponentProgress) (*types.ComponentProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *componentProgressRepo) Get(ctx context.Context, tx *gorm.DB, userID, componentID uuid.UUID) (*types.ComponentProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.ComponentProgress
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND component_id = ?", userID, componentID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *componentProgressRepo) GetByUserAndComponentIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, componentIDs []uuid.UUID) ([]*types.ComponentProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ComponentProgress
	if userID == uuid.Nil || len(componentIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND component_id IN ?", userID, componentIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *componentProgressRepo) UpdateFields(ctx context.Context, tx *gorm.DB, rowID uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if rowID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.ComponentProgress{}).
		Where("id = ?", rowID).
		Updates(updates).Error
}
