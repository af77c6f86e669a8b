package auth

import (
	"net/http"
	"strings"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/middleware"
	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh access/refresh pair is returned.
func Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	rt, err := utils.ValidateRefreshToken(strings.TrimSpace(req.Refresh))
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Invalid refresh token",
		})
		return
	}

	var user models.User
	if err := database.DB.First(&user, rt.UserID).Error; err != nil || !user.IsActive {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Invalid refresh token",
		})
		return
	}

	// Rotation: the old token is single-use.
	if err := database.DB.Model(&models.RefreshToken{}).
		Where("id = ?", rt.ID).
		Update("revoked", true).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to rotate token",
		})
		return
	}

	access, err := utils.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to issue tokens",
		})
		return
	}
	refresh, err := utils.GenerateRefreshToken(user.ID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to issue tokens",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Token refreshed",
		Data: map[string]interface{}{
			"access_token":  access,
			"refresh_token": refresh,
		},
	})
}
