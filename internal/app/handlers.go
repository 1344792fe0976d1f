package app

import (
	"github.com/safetrack/ehs-training-backend/internal/handlers"
	"github.com/safetrack/ehs-training-backend/internal/logger"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	Course      *handlers.CourseHandler
	Progress    *handlers.ProgressHandler
	Attempt     *handlers.AttemptHandler
	Certificate *handlers.CertificateHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:        handlers.NewAuthHandler(services.Auth),
		Course:      handlers.NewCourseHandler(services.Course),
		Progress:    handlers.NewProgressHandler(services.Progress),
		Attempt:     handlers.NewAttemptHandler(services.Attempt),
		Certificate: handlers.NewCertificateHandler(services.Certificate, services.Course),
	}
}
