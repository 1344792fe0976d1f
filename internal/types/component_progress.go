package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressFailed     ProgressStatus = "failed"
)

// ComponentProgress is the per-user, per-component state row, created lazily
// on first interaction. ProgressPercentage and TimeSpentSeconds only ever
// grow; a failed assessment still counts as 100% visited, with pass/fail
// carried in Status and LastScore.
type ComponentProgress struct {
	ID                 uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ComponentID        uuid.UUID        `gorm:"type:uuid;not null;index:idx_user_component,unique" json:"component_id"`
	Component          *CourseComponent `gorm:"constraint:OnDelete:CASCADE;foreignKey:ComponentID;references:ID" json:"component,omitempty"`
	UserID             uuid.UUID        `gorm:"type:uuid;not null;index:idx_user_component,unique" json:"user_id"`
	User               *User            `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Status             ProgressStatus   `gorm:"column:status;not null;default:'not_started'" json:"status"`
	ProgressPercentage int              `gorm:"column:progress_percentage;not null;default:0" json:"progress_percentage"`
	TimeSpentSeconds   int              `gorm:"column:time_spent_seconds;not null;default:0" json:"time_spent_seconds"`
	CompletedAt        *time.Time       `gorm:"column:completed_at" json:"completed_at,omitempty"`
	LastScore          *int             `gorm:"column:last_score" json:"last_score,omitempty"`
	CreatedAt          time.Time        `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (ComponentProgress) TableName() string { return "component_progress" }
