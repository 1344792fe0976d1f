package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/safetrack/ehs-training-backend/internal/handlers"
	"github.com/safetrack/ehs-training-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName        string
	AllowOrigins       []string
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	CourseHandler      *handlers.CourseHandler
	ProgressHandler    *handlers.ProgressHandler
	AttemptHandler     *handlers.AttemptHandler
	CertificateHandler *handlers.CertificateHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ehs-training-backend"
	}
	router.Use(otelgin.Middleware(serviceName))

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)
	router.POST("/refresh", cfg.AuthHandler.Refresh)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	api.POST("/logout", cfg.AuthHandler.Logout)

	// Courses
	api.GET("/courses/:id", cfg.CourseHandler.Get)
	api.POST("/courses/:id/enroll", cfg.CourseHandler.Enroll)
	api.GET("/courses/:id/progress", cfg.CourseHandler.Progress)
	api.GET("/courses/:id/certificate", cfg.CertificateHandler.Get)
	api.POST("/courses/:id/certificate", cfg.CertificateHandler.Issue)

	// Components
	api.POST("/components/:id/start", cfg.ProgressHandler.Start)
	api.PUT("/components/:id/progress", cfg.ProgressHandler.Update)
	api.POST("/components/:id/complete", cfg.ProgressHandler.Complete)
	api.POST("/components/:id/time", cfg.ProgressHandler.AddTime)
	api.POST("/components/:id/attempts", cfg.AttemptHandler.Start)

	// Attempts
	api.GET("/attempts/:id", cfg.AttemptHandler.Get)
	api.PUT("/attempts/:id/answers/:questionID", cfg.AttemptHandler.RecordAnswer)
	api.POST("/attempts/:id/submit", cfg.AttemptHandler.Submit)

	return router
}
