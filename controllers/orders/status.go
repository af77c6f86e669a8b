package orders

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

// CheckStatus returns the current payment status of an order so the client
// can poll while the STK prompt is outstanding.
func (c *OrderController) CheckStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID, err := strconv.ParseUint(vars["order_id"], 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid order id",
		})
		return
	}

	var order models.Order
	if err := c.DB.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
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

	writeFlatJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
	})
}
