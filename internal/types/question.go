package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
)

type Question struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ComponentID uuid.UUID        `gorm:"type:uuid;not null;index" json:"component_id"`
	Component   *CourseComponent `gorm:"constraint:OnDelete:CASCADE;foreignKey:ComponentID;references:ID" json:"component,omitempty"`
	Text        string           `gorm:"column:text;not null" json:"text"`
	Type        QuestionType     `gorm:"column:type;not null" json:"type"`
	Points      int              `gorm:"column:points;not null;default:1" json:"points"`
	Position    int              `gorm:"column:position;not null" json:"position"`
	Options     []QuestionOption `gorm:"foreignKey:QuestionID;references:ID" json:"options,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
}

func (Question) TableName() string { return "question" }

// QuestionOption's IsCorrect flag never leaves the server: attempt payloads
// are rebuilt without it before being returned to a learner.
type QuestionOption struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	QuestionID uuid.UUID      `gorm:"type:uuid;not null;index" json:"question_id"`
	Question   *Question      `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuestionID;references:ID" json:"question,omitempty"`
	Text       string         `gorm:"column:text;not null" json:"text"`
	IsCorrect  bool           `gorm:"column:is_correct;not null;default:false" json:"is_correct"`
	Position   int            `gorm:"column:position;not null" json:"position"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (QuestionOption) TableName() string { return "question_option" }
