package admins

import (
	"net/http"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

// ListOrders returns all orders, optionally filtered by status.
func ListOrders(w http.ResponseWriter, r *http.Request) {
	q := database.DB.Model(&models.Order{}).
		Preload("Product").
		Order("created_at DESC")
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load orders",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    orders,
	})
}
