package app

import (
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/repos"
)

type Repos struct {
	User              repos.UserRepo
	UserToken         repos.UserTokenRepo
	Course            repos.CourseRepo
	CourseComponent   repos.CourseComponentRepo
	Attempt           repos.AttemptRepo
	ComponentProgress repos.ComponentProgressRepo
	CourseProgress    repos.CourseProgressRepo
	Certificate       repos.CertificateRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:              repos.NewUserRepo(db, log),
		UserToken:         repos.NewUserTokenRepo(db, log),
		Course:            repos.NewCourseRepo(db, log),
		CourseComponent:   repos.NewCourseComponentRepo(db, log),
		Attempt:           repos.NewAttemptRepo(db, log),
		ComponentProgress: repos.NewComponentProgressRepo(db, log),
		CourseProgress:    repos.NewCourseProgressRepo(db, log),
		Certificate:       repos.NewCertificateRepo(db, log),
	}
}
