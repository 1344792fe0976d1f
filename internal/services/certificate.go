package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/repos"
	"github.com/safetrack/ehs-training-backend/internal/requestdata"
	"github.com/safetrack/ehs-training-backend/internal/types"
)

type CertificateService interface {
	// Issue creates the certificate for the pair, or returns the existing
	// one. Issuance is idempotent: repeat calls return the same
	// certificate number.
	Issue(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Certificate, error)
	// GetOwn returns the authenticated learner's certificate for a course,
	// or nil when none has been issued.
	GetOwn(ctx context.Context, courseID uuid.UUID) (*types.Certificate, error)
}

type certificateService struct {
	db       *gorm.DB
	log      *logger.Logger
	certRepo repos.CertificateRepo
	now      func() time.Time
	// validity of an issued certificate; zero means no expiry
	validFor time.Duration
}

func NewCertificateService(db *gorm.DB, baseLog *logger.Logger, certRepo repos.CertificateRepo, validFor time.Duration) CertificateService {
	return &certificateService{
		db:       db,
		log:      baseLog.With("service", "CertificateService"),
		certRepo: certRepo,
		now:      time.Now,
		validFor: validFor,
	}
}

func (s *certificateService) Issue(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*types.Certificate, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, ErrValidation.WithErr(fmt.Errorf("missing user or course id"))
	}

	existing, err := s.certRepo.Get(ctx, tx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	issued := s.now()
	cert := &types.Certificate{
		ID:                uuid.New(),
		CourseID:          courseID,
		UserID:            userID,
		CertificateNumber: certificateNumber(issued),
		IssuedDate:        issued,
	}
	if s.validFor > 0 {
		expiry := issued.Add(s.validFor)
		cert.ExpiryDate = &expiry
	}

	created, err := s.certRepo.Create(ctx, tx, cert)
	if err != nil {
		// A concurrent issue for the same pair can beat us to the unique
		// index; the stored row is the answer either way.
		if raced, getErr := s.certRepo.Get(ctx, tx, userID, courseID); getErr == nil && raced != nil {
			return raced, nil
		}
		return nil, err
	}
	s.log.Info("certificate issued", "course_id", courseID, "certificate_number", created.CertificateNumber)
	return created, nil
}

func (s *certificateService) GetOwn(ctx context.Context, courseID uuid.UUID) (*types.Certificate, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.certRepo.Get(ctx, nil, rd.UserID, courseID)
}

func certificateNumber(issued time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("EHS-%d-%s", issued.Year(), hex.EncodeToString(id[:6]))
}
