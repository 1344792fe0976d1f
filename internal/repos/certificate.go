package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type CertificateRepo interface {
	Create(ctx context.Context, tx *gorm.DB, cert *types.Certificate) (*types.Certificate, error)
	Get(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Certificate, error)
}

type certificateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	return &certificateRepo{db: db, log: baseLog.With("repo", "CertificateRepo")}
}

func (r *certificateRepo) Create(ctx context.Context, tx *gorm.DB, cert *types.Certificate) (*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if cert == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(cert).Error; err != nil {
		return nil, err
	}
	return cert, nil
}

func (r *certificateRepo) Get(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Certificate
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
