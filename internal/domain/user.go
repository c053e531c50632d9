package domain

import "time"

// User mirrors the marketplace users table. Account management lives in the
// main backend; this service only reads identity and display fields.
type User struct {
	ID         string    `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	Name       string    `gorm:"column:name" json:"name"`
	ProfileImg string    `gorm:"column:profile_img" json:"profile_img"`
	Role       string    `gorm:"column:role" json:"role"`
	IsActive   bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
