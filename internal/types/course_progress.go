package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CourseProgressStatus string

const (
	CourseProgressNotStarted CourseProgressStatus = "not_started"
	CourseProgressInProgress CourseProgressStatus = "in_progress"
	CourseProgressCompleted  CourseProgressStatus = "completed"
)

// CourseProgress is derived state: the aggregator recomputes it wholesale
// from the user's ComponentProgress rows on every write. It is never edited
// by hand.
type CourseProgress struct {
	ID                        uuid.UUID            `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID                  uuid.UUID            `gorm:"type:uuid;not null;index:idx_user_course,unique" json:"course_id"`
	Course                    *Course              `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	UserID                    uuid.UUID            `gorm:"type:uuid;not null;index:idx_user_course,unique" json:"user_id"`
	User                      *User                `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Status                    CourseProgressStatus `gorm:"column:status;not null;default:'not_started'" json:"status"`
	OverallProgressPercentage int                  `gorm:"column:overall_progress_percentage;not null;default:0" json:"overall_progress_percentage"`
	EnrollmentDate            time.Time            `gorm:"column:enrollment_date;not null" json:"enrollment_date"`
	CompletedDate             *time.Time           `gorm:"column:completed_date" json:"completed_date,omitempty"`
	CreatedAt                 time.Time            `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                 time.Time            `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt                 gorm.DeletedAt       `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseProgress) TableName() string { return "course_progress" }
