package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order lifecycle. pending is the only non-terminal state: an order moves to
// paid or failed exactly once and never leaves either.
const (
	OrderPending = "pending"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
)

type Order struct {
	ID        uint  `gorm:"primaryKey" json:"id"`
	BuyerID   *uint `gorm:"index" json:"buyer_id,omitempty"`
	ProductID uint  `gorm:"not null;index" json:"product_id"`
	// AffiliateID is the referring account, resolved best-effort at checkout.
	AffiliateID *uint           `gorm:"index" json:"affiliate_id,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Status      string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	// CheckoutRequestID is the gateway-issued correlation id; the asynchronous
	// STK callback joins back to the order through it.
	CheckoutRequestID *string   `gorm:"type:varchar(100);index" json:"checkout_request_id,omitempty"`
	MerchantRequestID *string   `gorm:"type:varchar(100)" json:"merchant_request_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"-"`

	// Relations
	Buyer     *User    `gorm:"foreignKey:BuyerID" json:"-"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"-"`
	Affiliate *User    `gorm:"foreignKey:AffiliateID" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}
