package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
	AttemptExpired       AttemptStatus = "expired"
)

// Terminal reports whether the attempt can no longer accept answers.
func (s AttemptStatus) Terminal() bool { return s != AttemptInProgress }

// AssessmentAttempt is one timed or untimed run at an assessment component.
// QuestionOrder freezes the presented question ids at start so grading stays
// stable even if the question bank is edited afterwards. Answers maps
// question id to the selected option ids. Score, once set, is never
// rewritten; re-submitting a terminal attempt returns the stored result.
type AssessmentAttempt struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ComponentID uuid.UUID        `gorm:"type:uuid;not null;index" json:"component_id"`
	Component   *CourseComponent `gorm:"constraint:OnDelete:CASCADE;foreignKey:ComponentID;references:ID" json:"component,omitempty"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User            `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`

	Status      AttemptStatus `gorm:"column:status;not null;default:'in_progress';index" json:"status"`
	StartedAt   time.Time     `gorm:"column:started_at;not null" json:"started_at"`
	ExpiresAt   *time.Time    `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	SubmittedAt *time.Time    `gorm:"column:submitted_at" json:"submitted_at,omitempty"`

	QuestionOrder datatypes.JSON `gorm:"type:jsonb;column:question_order" json:"question_order"`
	Answers       datatypes.JSON `gorm:"type:jsonb;column:answers" json:"answers"`

	Score  *int  `gorm:"column:score" json:"score,omitempty"`
	Passed *bool `gorm:"column:passed" json:"passed,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AssessmentAttempt) TableName() string { return "assessment_attempt" }
