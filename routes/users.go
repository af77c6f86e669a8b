package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/globalconnect024/backend/controllers"
	"github.com/globalconnect024/backend/controllers/auth"
	"github.com/globalconnect024/backend/middleware"
	"github.com/globalconnect024/backend/models"
)

// UsersRoutes wires all authenticated (non-admin) routes.
func UsersRoutes(api *mux.Router) {
	userLimiter := middleware.NewUserRateLimiter(100, 30, 60)

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(userLimiter.Middleware(h))
	}
	vendor := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.RequireRole(models.RoleVendor, models.RoleAdmin)(userLimiter.Middleware(h)))
	}

	// Profile
	api.Handle("/users/me", authed(auth.Me)).Methods(http.MethodGet)
	api.Handle("/users/me", authed(auth.UpdateMe)).Methods(http.MethodPut)

	// Vendor product management
	api.Handle("/products", vendor(controllers.CreateProduct)).Methods(http.MethodPost)
	api.Handle("/products/{id:[0-9]+}", vendor(controllers.UpdateProduct)).Methods(http.MethodPut)
	api.Handle("/products/{id:[0-9]+}", vendor(controllers.DeleteProduct)).Methods(http.MethodDelete)
	api.Handle("/products/{id:[0-9]+}/image", vendor(controllers.UploadProductImage)).Methods(http.MethodPost)

	// Vendor categories
	api.Handle("/categories", vendor(controllers.ListCategories)).Methods(http.MethodGet)
	api.Handle("/categories", vendor(controllers.CreateCategory)).Methods(http.MethodPost)
	api.Handle("/categories/{id:[0-9]+}", vendor(controllers.UpdateCategory)).Methods(http.MethodPut)
	api.Handle("/categories/{id:[0-9]+}", vendor(controllers.DeleteCategory)).Methods(http.MethodDelete)

	// Blog authoring
	api.Handle("/blog", authed(controllers.CreatePost)).Methods(http.MethodPost)
	api.Handle("/blog/{id:[0-9]+}", authed(controllers.UpdatePost)).Methods(http.MethodPut)
	api.Handle("/blog/{id:[0-9]+}", authed(controllers.DeletePost)).Methods(http.MethodDelete)
}
