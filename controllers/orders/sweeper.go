package orders

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

// ExpirePending fails pending orders whose STK prompt can no longer complete.
// Called by an external scheduler; protected by X-CRON-KEY. The conditional
// update means a callback landing mid-sweep still wins or loses atomically.
func (c *OrderController) ExpirePending(w http.ResponseWriter, r *http.Request) {
	cronKey := os.Getenv("CRON_API_KEY")
	if cronKey == "" || r.Header.Get("X-CRON-KEY") != cronKey {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Unauthorized",
		})
		return
	}

	maxAgeMin := 30
	if s := os.Getenv("ORDER_PENDING_MAX_AGE_MIN"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			maxAgeMin = v
		}
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeMin) * time.Minute)

	res := c.DB.Model(&models.Order{}).
		Where("status = ? AND created_at < ?", models.OrderPending, cutoff).
		Update("status", models.OrderFailed)
	if res.Error != nil {
		log.Printf("[sweeper] expire pending failed: %v", res.Error)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to expire pending orders",
		})
		return
	}

	log.Printf("[sweeper] expired %d pending orders older than %dm", res.RowsAffected, maxAgeMin)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Expired pending orders",
		Data:    map[string]interface{}{"expired": res.RowsAffected},
	})
}
