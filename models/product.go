package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	VendorID    uint            `gorm:"column:vendor_id;not null;index" json:"vendor_id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	ImageURL    *string         `gorm:"type:varchar(512)" json:"image_url,omitempty"`
	Stock       uint            `gorm:"default:0" json:"stock"`
	Approved    bool            `gorm:"default:false" json:"approved"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"-"`

	// Relations
	Vendor *User `gorm:"foreignKey:VendorID" json:"-"`
}

func (Product) TableName() string {
	return "products"
}
