package entities

import "time"

type Purchase struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"not null;index:idx_purchases_user_course"`
	CourseID    uint      `json:"course_id" gorm:"not null;index:idx_purchases_user_course"`
	PurchasedAt time.Time `json:"purchased_at" gorm:"not null"`
}

func (Purchase) TableName() string {
	return "purchases"
}
