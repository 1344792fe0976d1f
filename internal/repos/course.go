package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type CourseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, courses []*types.Course) ([]*types.Course, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) ([]*types.Course, error)
	// GetWithComponents loads one course with its components in sequence
	// order, each assessment component carrying its question bank.
	GetWithComponents(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Course, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(ctx context.Context, tx *gorm.DB, courses []*types.Course) ([]*types.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(courses) == 0 {
		return []*types.Course{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepo) GetByIDs(ctx context.Context, tx *gorm.DB, courseIDs []uuid.UUID) ([]*types.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Course
	if len(courseIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", courseIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRepo) GetWithComponents(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if courseID == uuid.Nil {
		return nil, nil
	}

	var result types.Course
	err := transaction.WithContext(ctx).
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_order ASC")
		}).
		Preload("Components.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Components.Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", courseID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
