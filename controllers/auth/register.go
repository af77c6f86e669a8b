package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/middleware"
	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

type registerRequest struct {
	Username         string `json:"username" validate:"required,nameok"`
	Email            string `json:"email" validate:"required,emailok"`
	Password         string `json:"password" validate:"required,pwdmin"`
	Role             string `json:"role"`
	Country          string `json:"country"`
	City             string `json:"city"`
	PromotionMethods string `json:"promotion_methods"`
}

// Register creates a user or vendor account. Accounts are active on
// creation; activation email delivery is handled elsewhere.
func Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = models.RoleUser
	case models.RoleUser, models.RoleVendor:
	default:
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Role must be user or vendor",
		})
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	database.DB.Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&count)
	if count > 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Username or email already taken",
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to create account",
		})
		return
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		Role:     role,
		IsActive: true,
	}
	if req.Country != "" {
		user.Country = utils.StrPtr(req.Country)
	}
	if req.City != "" {
		user.City = utils.StrPtr(req.City)
	}
	if req.PromotionMethods != "" {
		user.PromotionMethods = utils.StrPtr(req.PromotionMethods)
	}

	if err := database.DB.Create(&user).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to create account",
		})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Account created",
		Data:    user,
	})
}
