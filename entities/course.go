package entities

import (
	"time"
	"video-gate/constant"
)

// Course is the read-only view of the externally owned course catalog.
type Course struct {
	ID                 uint                  `json:"id" gorm:"primaryKey"`
	Title              string                `json:"title" gorm:"type:varchar(255);not null"`
	CommerceType       constant.CommerceType `json:"commerce_type" gorm:"type:varchar(20);not null;default:'free'"`
	AccessDurationDays int                   `json:"access_duration_days" gorm:"not null;default:0"`
	Lessons            []Lesson              `json:"lessons" gorm:"foreignKey:CourseID"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func (Course) TableName() string {
	return "courses"
}

// IsFree is true only for the exact free commerce type; anything else needs a purchase.
func (c Course) IsFree() bool {
	return c.CommerceType == constant.CommerceTypeFree
}
