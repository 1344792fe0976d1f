package app

import (
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/jobs"
	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	Certificate services.CertificateService
	Course      services.CourseService
	Progress    services.ProgressService
	Attempt     services.AttemptService

	ExpirySweeper *jobs.ExpirySweeper
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, clients Clients) Services {
	log.Info("Wiring services...")

	authService := services.NewAuthService(db, log, r.User, r.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	certificateService := services.NewCertificateService(db, log, r.Certificate, cfg.CertificateValidity)
	courseService := services.NewCourseService(db, log, r.Course, r.CourseComponent, r.ComponentProgress, r.CourseProgress, r.Attempt, certificateService, clients.Publisher)
	progressService := services.NewProgressService(db, log, r.CourseComponent, r.ComponentProgress, r.Attempt, courseService)
	attemptService := services.NewAttemptService(db, log, r.CourseComponent, r.ComponentProgress, r.Attempt, progressService, clients.AttemptLocker)

	return Services{
		Auth:          authService,
		Certificate:   certificateService,
		Course:        courseService,
		Progress:      progressService,
		Attempt:       attemptService,
		ExpirySweeper: jobs.NewExpirySweeper(log, attemptService, cfg.SweepInterval),
	}
}
