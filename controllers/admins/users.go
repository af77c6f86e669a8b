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

// ListUsers returns all accounts, optionally filtered by role.
func ListUsers(w http.ResponseWriter, r *http.Request) {
	q := database.DB.Model(&models.User{}).Order("created_at DESC")
	if role := r.URL.Query().Get("role"); role != "" {
		q = q.Where("role = ?", role)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load users",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    users,
	})
}

// SetUserActive toggles an account's is_active flag.
func SetUserActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
				Success: false,
				Message: "Invalid user id",
			})
			return
		}

		var user models.User
		if err := database.DB.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
					Success: false,
					Message: "User not found",
				})
				return
			}
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
				Success: false,
				Message: "Failed to load user",
			})
			return
		}

		if err := database.DB.Model(&user).Update("is_active", active).Error; err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
				Success: false,
				Message: "Failed to update user",
			})
			return
		}

		msg := "User deactivated"
		if active {
			msg = "User activated"
		}
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
			Success: true,
			Message: msg,
			Data:    user,
		})
	}
}
