package models

import "time"

const (
	RoleUser   = "user" // affiliate account
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

type User struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Username         string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email            string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password         string    `gorm:"size:255;not null" json:"-"`
	Role             string    `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	Country          *string   `gorm:"size:100" json:"country,omitempty"`
	City             *string   `gorm:"size:100" json:"city,omitempty"`
	PromotionMethods *string   `gorm:"type:text" json:"promotion_methods,omitempty"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}
