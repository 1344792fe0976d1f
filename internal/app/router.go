package app

import (
	"github.com/gin-gonic/gin"

	"github.com/safetrack/ehs-training-backend/internal/server"
)

func wireRouter(cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:        "ehs-training-backend",
		AllowOrigins:       cfg.AllowOrigins,
		AuthHandler:        handlers.Auth,
		AuthMiddleware:     middleware.Auth,
		CourseHandler:      handlers.Course,
		ProgressHandler:    handlers.Progress,
		AttemptHandler:     handlers.Attempt,
		CertificateHandler: handlers.Certificate,
	})
}
