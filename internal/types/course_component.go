package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ComponentType string

const (
	ComponentPreAssessment    ComponentType = "pre_assessment"
	ComponentPostAssessment   ComponentType = "post_assessment"
	ComponentLearningMaterial ComponentType = "learning_material"
	ComponentVideo            ComponentType = "video"
	ComponentPresentation     ComponentType = "presentation"
	ComponentInteractive      ComponentType = "interactive"
)

func (t ComponentType) IsAssessment() bool {
	return t == ComponentPreAssessment || t == ComponentPostAssessment
}

// CourseComponent is one ordered unit within a course. SequenceOrder is a
// dense total order per course. Assessment components carry their definition
// inline (time limit, passing score, attempt limit) and own a question bank.
type CourseComponent struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_course_sequence,unique" json:"course_id"`
	Course            *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Type              ComponentType  `gorm:"column:type;not null" json:"type"`
	Title             string         `gorm:"column:title;not null" json:"title"`
	SequenceOrder     int            `gorm:"column:sequence_order;not null;index:idx_course_sequence,unique" json:"sequence_order"`
	RequiredToAdvance bool           `gorm:"column:required_to_advance;not null;default:true" json:"required_to_advance"`

	// Assessment definition. Nil TimeLimitSeconds means untimed, nil
	// MaxAttempts means unlimited retries.
	TimeLimitSeconds    *int `gorm:"column:time_limit_seconds" json:"time_limit_seconds,omitempty"`
	PassingScorePercent int  `gorm:"column:passing_score_percent;not null;default:0" json:"passing_score_percent"`
	RandomizeQuestions  bool `gorm:"column:randomize_questions;not null;default:false" json:"randomize_questions"`
	MaxAttempts         *int `gorm:"column:max_attempts" json:"max_attempts,omitempty"`

	Questions []Question     `gorm:"foreignKey:ComponentID;references:ID" json:"questions,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseComponent) TableName() string { return "course_component" }
