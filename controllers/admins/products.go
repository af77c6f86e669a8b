package admins

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

// ListProducts returns every product including unapproved ones.
func ListProducts(w http.ResponseWriter, r *http.Request) {
	q := database.DB.Model(&models.Product{}).Preload("Vendor").Order("created_at DESC")
	if r.URL.Query().Get("pending") == "true" {
		q = q.Where("approved = ?", false)
	}

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load products",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    products,
	})
}

// ApproveProduct makes a product publicly listable.
func ApproveProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid product id",
		})
		return
	}

	var product models.Product
	if err := database.DB.First(&product, id).Error; err != nil {
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

	if err := database.DB.Model(&product).Update("approved", true).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to approve product",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Product approved",
		Data:    product,
	})
}
