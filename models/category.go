package models

import "time"

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	VendorID    uint      `gorm:"column:vendor_id;not null;index" json:"vendor_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"-"`
}

func (Category) TableName() string {
	return "categories"
}
