package orders

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

type checkoutRequest struct {
	Product   uint   `json:"product" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Phone     string `json:"phone" validate:"required,phone254"`
	Affiliate string `json:"affiliate"`
}

type checkoutResponse struct {
	Message           string `json:"message"`
	OrderID           uint   `json:"order_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
}

// Checkout creates a pending order and fires the STK push. The order row is
// persisted before the gateway call so a crashed push still leaves a record.
func (c *OrderController) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid JSON body",
		})
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid amount",
		})
		return
	}

	var product models.Product
	if err := c.DB.First(&product, req.Product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
				Success: false,
				Message: "Product not found",
			})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load product",
		})
		return
	}

	order := models.Order{
		ProductID: product.ID,
		Amount:    amount,
		Status:    models.OrderPending,
	}

	// Optional bearer token associates the order with a buyer account.
	if uid, ok := buyerFromRequest(r); ok {
		order.BuyerID = utils.UintPtr(uid)
	}

	// Affiliate attribution is best-effort: an unknown reference is ignored
	// rather than failing the purchase. Referral links carry either the
	// affiliate's numeric user id or their username.
	if ref := strings.TrimSpace(req.Affiliate); ref != "" {
		var affiliate models.User
		var err error
		if id, perr := strconv.ParseUint(ref, 10, 32); perr == nil {
			err = c.DB.First(&affiliate, uint(id)).Error
		} else {
			err = c.DB.Where("username = ?", ref).First(&affiliate).Error
		}
		if err == nil {
			order.AffiliateID = utils.UintPtr(affiliate.ID)
		}
	}

	if err := c.DB.Create(&order).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to create order",
		})
		return
	}

	resp, err := c.Gateway.InitiateSTKPush(r.Context(), req.Phone, amount)
	if err != nil {
		var rejection *utils.STKRejection
		if errors.As(err, &rejection) {
			c.failOrder(order.ID)
			log.Printf("[checkout] order=%d stk rejected code=%s detail=%s", order.ID, rejection.Code, rejection.Detail)
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
				Success: false,
				Message: "Payment request rejected",
				Data:    map[string]interface{}{"order_id": order.ID, "detail": rejection.Detail},
			})
			return
		}
		c.failOrder(order.ID)
		log.Printf("[checkout] order=%d gateway error: %v", order.ID, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to initiate payment",
			Data:    map[string]interface{}{"order_id": order.ID},
		})
		return
	}

	order.MerchantRequestID = utils.StrPtr(resp.MerchantRequestID)
	order.CheckoutRequestID = utils.StrPtr(resp.CheckoutRequestID)
	if err := c.DB.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"merchant_request_id": resp.MerchantRequestID,
		"checkout_request_id": resp.CheckoutRequestID,
	}).Error; err != nil {
		log.Printf("[checkout] order=%d failed to persist correlation ids: %v", order.ID, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to record payment request",
			Data:    map[string]interface{}{"order_id": order.ID},
		})
		return
	}

	message := resp.CustomerMessage
	if message == "" {
		message = "STK push sent."
	}
	writeFlatJSON(w, http.StatusOK, checkoutResponse{
		Message:           message,
		OrderID:           order.ID,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
	})
}

// failOrder moves a still-pending order to failed. Terminal states are left
// untouched.
func (c *OrderController) failOrder(orderID uint) {
	res := c.DB.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderPending).
		Update("status", models.OrderFailed)
	if res.Error != nil {
		log.Printf("[checkout] order=%d failed to mark failed: %v", orderID, res.Error)
	}
}

// buyerFromRequest extracts the user from an optional bearer token. Invalid
// or absent tokens mean a guest checkout.
func buyerFromRequest(r *http.Request) (uint, bool) {
	if uid, ok := utils.GetUserID(r); ok {
		return uid, true
	}
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return 0, false
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	_, claims, err := utils.ValidateAccessToken(tokenStr)
	if err != nil {
		return 0, false
	}
	if id, ok := claims["id"].(float64); ok {
		return uint(id), true
	}
	return 0, false
}

func writeFlatJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
