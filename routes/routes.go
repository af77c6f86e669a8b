package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/globalconnect024/backend/controllers"
	"github.com/globalconnect024/backend/controllers/auth"
	"github.com/globalconnect024/backend/controllers/orders"
	"github.com/globalconnect024/backend/middleware"
)

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "globalconnect-api",
	})
}

func InitRouter(orderCtrl *orders.OrderController) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint for Docker health checks (root level)
	r.Handle("/health", http.HandlerFunc(healthHandler)).Methods(http.MethodGet)

	// CORS - origins from CORS_ALLOWED_ORIGINS (comma-separated) or defaults
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	origins := []string{
		"https://globalconnect024.com",
		"http://localhost:3000", "http://localhost:8080", "http://127.0.0.1:3000", "http://127.0.0.1:8080",
	}
	if originsEnv != "" {
		parts := strings.Split(originsEnv, ",")
		for _, p := range parts {
			if o := strings.TrimSpace(p); o != "" {
				origins = append(origins, o)
			}
		}
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-CRON-KEY", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	api := r.PathPrefix("/api").Subrouter()

	// Catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	// Rate limiter for cron: 1000/hour
	cronLimiter := middleware.NewIPRateLimiter(1000, time.Hour)
	// Rate limiter for the M-Pesa callback: 500/ip/hour, whitelist, sliding window
	webhookWhitelist := []string{"127.0.0.1"}
	if v := os.Getenv("MPESA_CALLBACK_WHITELIST"); v != "" {
		for _, ip := range strings.Split(v, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				webhookWhitelist = append(webhookWhitelist, ip)
			}
		}
	}
	webhookLimiter := middleware.NewWebhookLimiter(500, time.Hour, webhookWhitelist)
	// Tighter limiter on credential endpoints
	authLimiter := middleware.NewIPRateLimiter(50, time.Minute)

	// Auth
	api.Handle("/register", authLimiter.Middleware(http.HandlerFunc(auth.Register))).Methods(http.MethodPost)
	api.Handle("/login", authLimiter.Middleware(http.HandlerFunc(auth.Login))).Methods(http.MethodPost)
	api.Handle("/token/refresh", authLimiter.Middleware(http.HandlerFunc(auth.Refresh))).Methods(http.MethodPost)
	api.Handle("/logout", http.HandlerFunc(auth.Logout)).Methods(http.MethodPost)

	// Public catalog and blog
	api.Handle("/products", http.HandlerFunc(controllers.ListProducts)).Methods(http.MethodGet)
	api.Handle("/products/{id:[0-9]+}", http.HandlerFunc(controllers.GetProduct)).Methods(http.MethodGet)
	api.Handle("/blog", http.HandlerFunc(controllers.ListPublishedPosts)).Methods(http.MethodGet)
	api.Handle("/blog/{slug}", http.HandlerFunc(controllers.GetPostBySlug)).Methods(http.MethodGet)

	// Payments. Checkout takes an optional bearer token so it stays public;
	// the callback sits behind the webhook limiter only.
	api.Handle("/orders/checkout", http.HandlerFunc(orderCtrl.Checkout)).Methods(http.MethodPost)
	api.Handle("/orders/check-status/{order_id:[0-9]+}", http.HandlerFunc(orderCtrl.CheckStatus)).Methods(http.MethodGet)
	api.Handle("/orders/mpesa/callback", webhookLimiter.Middleware(http.HandlerFunc(orderCtrl.MpesaCallback))).Methods(http.MethodPost)

	// Cron endpoint for expiring abandoned STK prompts (X-CRON-KEY header)
	api.Handle("/cron/expire-pending", cronLimiter.Middleware(http.HandlerFunc(orderCtrl.ExpirePending))).Methods(http.MethodPost)

	UsersRoutes(api)
	SetAdminRoutes(api)

	return r
}
