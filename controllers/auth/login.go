package auth

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/middleware"
	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// Login authenticates by username or email and issues an access/refresh
// token pair. Repeated failures trigger a progressive lockout.
func Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	identifier := strings.TrimSpace(req.Identifier)

	var user models.User
	err := database.DB.
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&user).Error
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	if locked, ttl := middleware.IsAccountLocked(user.ID); locked {
		utils.WriteJSON(w, http.StatusTooManyRequests, utils.APIResponse{
			Success: false,
			Message: fmt.Sprintf("Account temporarily locked, try again in %d seconds", int(ttl.Seconds())),
		})
		return
	}

	if !user.IsActive {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{
			Success: false,
			Message: "Account is disabled",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		middleware.RecordFailedLogin(user.ID)
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	middleware.ResetFailedLogin(user.ID)

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
		Message: "Login successful",
		Data: map[string]interface{}{
			"access_token":  access,
			"refresh_token": refresh,
			"user":          user,
		},
	})
}
