package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/types"
	"github.com/safetrack/ehs-training-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "ehs_training", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Course{},
		&types.CourseComponent{},
		&types.Question{},
		&types.QuestionOption{},
		&types.AssessmentAttempt{},
		&types.ComponentProgress{},
		&types.CourseProgress{},
		&types.Certificate{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// AutoMigrate cannot express a partial unique index. This one enforces
	// the single-active-attempt invariant at the storage layer, under the
	// advisory lock the attempt service takes on start.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS "idx_active_attempt"
		ON "assessment_attempt" ("user_id", "component_id")
		WHERE "status" = 'in_progress' AND "deleted_at" IS NULL
	`).Error; err != nil {
		return fmt.Errorf("create idx_active_attempt: %w", err)
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	if err := s.db.Exec(`
		ALTER TABLE "user_token"
		DROP CONSTRAINT IF EXISTS "fk_user_token_user_id"
	`).Error; err != nil {
		return fmt.Errorf("drop fk_user_token_user_id: %w", err)
	}
	if err := s.db.Exec(`
		ALTER TABLE "user_token"
		ADD CONSTRAINT "fk_user_token_user_id"
		FOREIGN KEY ("user_id")
		REFERENCES "user"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("add fk_user_token_user_id: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
