package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type CourseProgressRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) (*types.CourseProgress, error)
	Get(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.CourseProgress, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.CourseProgress, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, rowID uuid.UUID, updates map[string]any) error
}

type courseProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseProgressRepo(db *gorm.DB, baseLog *logger.Logger) CourseProgressRepo {
	return &courseProgressRepo{db: db, log: baseLog.With("repo", "CourseProgressRepo")}
}

func (r *courseProgressRepo) Create(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) (*types.CourseProgress, error) {
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

func (r *courseProgressRepo) Get(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.CourseProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.CourseProgress
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *courseProgressRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.CourseProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseProgress
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseProgressRepo) UpdateFields(ctx context.Context, tx *gorm.DB, rowID uuid.UUID, updates map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if rowID == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.CourseProgress{}).
		Where("id = ?", rowID).
		Updates(updates).Error
}
