package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral records the commission earned by an affiliate on one paid order.
// is_approved and is_paid are independent flags managed by the admin
// workflow; there is deliberately no state machine between them.
type Referral struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	AffiliateID      uint            `gorm:"not null;index" json:"affiliate_id"`
	OrderID          uint            `gorm:"not null;uniqueIndex" json:"order_id"`
	ProductID        *uint           `json:"product_id,omitempty"`
	CommissionEarned decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"commission_earned"`
	IsApproved       bool            `gorm:"default:false" json:"is_approved"`
	IsPaid           bool            `gorm:"default:false" json:"is_paid"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"-"`

	// Relations
	Affiliate *User  `gorm:"foreignKey:AffiliateID" json:"-"`
	Order     *Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (Referral) TableName() string {
	return "referrals"
}
