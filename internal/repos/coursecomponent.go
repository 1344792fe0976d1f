package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type CourseComponentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, components []*types.CourseComponent) ([]*types.CourseComponent, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, componentIDs []uuid.UUID) ([]*types.CourseComponent, error)
	// GetByCourseID returns the course's components in sequence order.
	GetByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseComponent, error)
	// GetWithQuestions loads one component with its question bank and
	// options, ordered by authored position.
	GetWithQuestions(ctx context.Context, tx *gorm.DB, componentID uuid.UUID) (*types.CourseComponent, error)
}

type courseComponentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseComponentRepo(db *gorm.DB, baseLog *logger.Logger) CourseComponentRepo {
	return &courseComponentRepo{db: db, log: baseLog.With("repo", "CourseComponentRepo")}
}

func (r *courseComponentRepo) Create(ctx context.Context, tx *gorm.DB, components []*types.CourseComponent) ([]*types.CourseComponent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(components) == 0 {
		return []*types.CourseComponent{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&components).Error; err != nil {
		return nil, err
	}
	return components, nil
}

func (r *courseComponentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, componentIDs []uuid.UUID) ([]*types.CourseComponent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseComponent
	if len(componentIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", componentIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseComponentRepo) GetByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*types.CourseComponent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseComponent
	if courseID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("sequence_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseComponentRepo) GetWithQuestions(ctx context.Context, tx *gorm.DB, componentID uuid.UUID) (*types.CourseComponent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if componentID == uuid.Nil {
		return nil, nil
	}

	var result types.CourseComponent
	err := transaction.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", componentID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
