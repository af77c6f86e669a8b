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

// ListReferrals returns commissions, optionally filtered on approval or
// payout state.
func ListReferrals(w http.ResponseWriter, r *http.Request) {
	q := database.DB.Model(&models.Referral{}).
		Preload("Affiliate").
		Order("created_at DESC")
	if v := r.URL.Query().Get("approved"); v != "" {
		q = q.Where("is_approved = ?", v == "true")
	}
	if v := r.URL.Query().Get("paid"); v != "" {
		q = q.Where("is_paid = ?", v == "true")
	}

	var referrals []models.Referral
	if err := q.Find(&referrals).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load referrals",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    referrals,
	})
}

// ApproveReferral marks a commission as approved for payout. Approval and
// payout are independent flags, either can be set in any order.
func ApproveReferral(w http.ResponseWriter, r *http.Request) {
	setReferralFlag(w, r, "is_approved", "Referral approved")
}

// PayReferral marks a commission as paid out.
func PayReferral(w http.ResponseWriter, r *http.Request) {
	setReferralFlag(w, r, "is_paid", "Referral marked paid")
}

func setReferralFlag(w http.ResponseWriter, r *http.Request, column, okMsg string) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid referral id",
		})
		return
	}

	var referral models.Referral
	if err := database.DB.First(&referral, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
				Success: false,
				Message: "Referral not found",
			})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load referral",
		})
		return
	}

	if err := database.DB.Model(&referral).Update(column, true).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to update referral",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: okMsg,
		Data:    referral,
	})
}
