package orders

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/globalconnect024/backend/utils"
)

// StkGateway is the slice of the M-Pesa client the order handlers need.
type StkGateway interface {
	InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal) (*utils.STKPushResponse, error)
}

type OrderController struct {
	DB      *gorm.DB
	Gateway StkGateway
}

func NewOrderController(db *gorm.DB, gateway StkGateway) *OrderController {
	return &OrderController{DB: db, Gateway: gateway}
}
