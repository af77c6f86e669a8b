package orders

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

type stkCallbackBody struct {
	Body *struct {
		StkCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        *int   `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// MpesaCallback reconciles the asynchronous payment result. The provider
// retries on non-2xx, so every processed callback is acknowledged with 200
// whether the payment succeeded or not.
func (c *OrderController) MpesaCallback(w http.ResponseWriter, r *http.Request) {
	var payload stkCallbackBody
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("[callback] malformed body: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Invalid callback payload",
		})
		return
	}
	if payload.Body == nil || payload.Body.StkCallback == nil ||
		payload.Body.StkCallback.CheckoutRequestID == "" ||
		payload.Body.StkCallback.ResultCode == nil {
		log.Printf("[callback] missing stkCallback fields")
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Invalid callback payload",
		})
		return
	}

	cb := payload.Body.StkCallback
	checkoutID := cb.CheckoutRequestID
	resultCode := *cb.ResultCode

	var order models.Order
	if err := c.DB.Where("checkout_request_id = ?", checkoutID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[callback] unknown checkout_request_id=%s", checkoutID)
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
				Success: false,
				Message: "Order not found",
			})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load order",
		})
		return
	}

	newStatus := models.OrderFailed
	if resultCode == 0 {
		newStatus = models.OrderPaid
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		// Conditional update closes the double-callback race: only the
		// first callback moves the order out of pending.
		res := tx.Model(&models.Order{}).
			Where("checkout_request_id = ? AND status = ?", checkoutID, models.OrderPending).
			Update("status", newStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Duplicate or conflicting callback for an already finalized
			// order. State stays as-is, receipt is still acknowledged.
			log.Printf("[callback] order=%d already %s, ignoring result_code=%d", order.ID, order.Status, resultCode)
			return nil
		}
		if newStatus == models.OrderPaid && order.AffiliateID != nil {
			referral := models.Referral{
				AffiliateID:      *order.AffiliateID,
				OrderID:          order.ID,
				ProductID:        utils.UintPtr(order.ProductID),
				CommissionEarned: order.Amount.Mul(commissionRate()).Round(2),
			}
			if err := tx.Create(&referral).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[callback] order=%d finalize failed: %v", order.ID, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to process callback",
		})
		return
	}

	log.Printf("[callback] checkout_request_id=%s result_code=%d desc=%q", checkoutID, resultCode, cb.ResultDesc)
	writeFlatJSON(w, http.StatusOK, map[string]string{"message": "Callback received"})
}

func commissionRate() decimal.Decimal {
	if s := os.Getenv("AFFILIATE_COMMISSION_RATE"); s != "" {
		if rate, err := decimal.NewFromString(s); err == nil && rate.IsPositive() {
			return rate
		}
	}
	return decimal.NewFromFloat(0.10)
}
