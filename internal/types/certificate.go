package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Certificate is issued at most once per (user, course); repeat issuance
// requests return the existing row.
type Certificate struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_course_cert,unique" json:"course_id"`
	Course            *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_course_cert,unique" json:"user_id"`
	User              *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	CertificateNumber string         `gorm:"column:certificate_number;uniqueIndex;not null" json:"certificate_number"`
	IssuedDate        time.Time      `gorm:"column:issued_date;not null" json:"issued_date"`
	ExpiryDate        *time.Time     `gorm:"column:expiry_date" json:"expiry_date,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Certificate) TableName() string { return "certificate" }
