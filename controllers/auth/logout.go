package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// Logout revokes the presented refresh token and blacklists the access
// token's jti for the remainder of its lifetime.
func Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Refresh != "" {
		_ = database.DB.Model(&models.RefreshToken{}).
			Where("id = ?", strings.TrimSpace(req.Refresh)).
			Update("revoked", true).Error
	}

	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		if _, claims, err := utils.ValidateAccessToken(tokenStr); err == nil {
			jti, _ := claims["jti"].(string)
			ttl := time.Hour
			if exp, ok := claims["exp"].(float64); ok {
				if remain := time.Until(time.Unix(int64(exp), 0)); remain > 0 {
					ttl = remain
				}
			}
			if jti != "" {
				_ = utils.RevokeJTI(jti, ttl)
			}
		}
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Logged out",
	})
}
