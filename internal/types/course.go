package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
	CourseArchived  CourseStatus = "archived"
)

// Course is an ordered sequence of components a learner works through.
// Component ordering is immutable once the course is published; structural
// edits happen on a new draft.
type Course struct {
	ID                      uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title                   string            `gorm:"column:title;not null" json:"title"`
	Description             string            `gorm:"column:description" json:"description"`
	DomainID                *uuid.UUID        `gorm:"type:uuid;column:domain_id;index" json:"domain_id,omitempty"`
	Status                  CourseStatus      `gorm:"column:status;not null;default:'draft';index" json:"status"`
	RequiredCompletionScore int               `gorm:"column:required_completion_score;not null;default:0" json:"required_completion_score"`
	Components              []CourseComponent `gorm:"foreignKey:CourseID;references:ID" json:"components,omitempty"`
	CreatedAt               time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt               time.Time         `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt               gorm.DeletedAt    `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }
