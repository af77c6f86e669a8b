package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/globalconnect024/backend/controllers/admins"
	"github.com/globalconnect024/backend/middleware"
)

// SetAdminRoutes wires the admin API behind AdminAuthMiddleware.
func SetAdminRoutes(api *mux.Router) {
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminAuthMiddleware)

	admin.Handle("/users", http.HandlerFunc(admins.ListUsers)).Methods(http.MethodGet)
	admin.Handle("/users/{id:[0-9]+}/activate", admins.SetUserActive(true)).Methods(http.MethodPost)
	admin.Handle("/users/{id:[0-9]+}/deactivate", admins.SetUserActive(false)).Methods(http.MethodPost)

	admin.Handle("/products", http.HandlerFunc(admins.ListProducts)).Methods(http.MethodGet)
	admin.Handle("/products/{id:[0-9]+}/approve", http.HandlerFunc(admins.ApproveProduct)).Methods(http.MethodPost)

	admin.Handle("/orders", http.HandlerFunc(admins.ListOrders)).Methods(http.MethodGet)

	admin.Handle("/referrals", http.HandlerFunc(admins.ListReferrals)).Methods(http.MethodGet)
	admin.Handle("/referrals/{id:[0-9]+}/approve", http.HandlerFunc(admins.ApproveReferral)).Methods(http.MethodPost)
	admin.Handle("/referrals/{id:[0-9]+}/pay", http.HandlerFunc(admins.PayReferral)).Methods(http.MethodPost)
}
