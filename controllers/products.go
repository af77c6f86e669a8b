package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

// ListProducts returns the product catalog. Visitors see approved, active,
// in-stock products; vendors additionally see their own rows; admins see all.
func ListProducts(w http.ResponseWriter, r *http.Request) {
	uid, authed := utils.GetUserID(r)
	role := utils.GetUserRole(r)

	q := database.DB.Model(&models.Product{}).Order("created_at DESC")
	switch {
	case role == models.RoleAdmin:
		// no filter
	case authed && role == models.RoleVendor:
		q = q.Where("vendor_id = ? OR (approved = ? AND is_active = ? AND stock > 0)", uid, true, true)
	default:
		q = q.Where("approved = ? AND is_active = ? AND stock > 0", true, true)
	}

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load products",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    products,
	})
}

// GetProduct returns a single product by id.
func GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid product id",
		})
		return
	}

	var product models.Product
	if err := database.DB.Preload("Vendor").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
				Success: false,
				Message: "Product not found",
			})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load product",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    product,
	})
}

type productRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"required"`
	Stock       uint   `json:"stock"`
	IsActive    *bool  `json:"is_active"`
}

// CreateProduct creates a product owned by the authenticated vendor. New
// products start unapproved; only an admin can flip approval.
func CreateProduct(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Unauthorized",
		})
		return
	}

	var req productRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid JSON body",
		})
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid price",
		})
		return
	}

	product := models.Product{
		VendorID:    uid,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
		IsActive:    true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&product).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to create product",
		})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Product created",
		Data:    product,
	})
}

// UpdateProduct updates a product. Vendors can only touch their own rows and
// cannot change the approved flag.
func UpdateProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := vendorOwnedProduct(w, r)
	if !ok {
		return
	}

	var req productRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid JSON body",
		})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = strings.TrimSpace(req.Name)
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Price != "" {
		price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
				Success: false,
				Message: "Invalid price",
			})
			return
		}
		updates["price"] = price
	}
	if req.Stock > 0 {
		updates["stock"] = req.Stock
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := database.DB.Model(product).Updates(updates).Error; err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
				Success: false,
				Message: "Failed to update product",
			})
			return
		}
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Product updated",
		Data:    product,
	})
}

// DeleteProduct removes a vendor's own product.
func DeleteProduct(w http.ResponseWriter, r *http.Request) {
	product, ok := vendorOwnedProduct(w, r)
	if !ok {
		return
	}

	if err := database.DB.Delete(product).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to delete product",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Product deleted",
	})
}

// UploadProductImage stores a multipart image in R2 and records its key on
// the product.
func UploadProductImage(w http.ResponseWriter, r *http.Request) {
	product, ok := vendorOwnedProduct(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Missing image file",
		})
		return
	}
	defer file.Close()

	ext := strings.ToLower(header.Filename)
	if !strings.HasSuffix(ext, ".jpg") && !strings.HasSuffix(ext, ".jpeg") &&
		!strings.HasSuffix(ext, ".png") && !strings.HasSuffix(ext, ".webp") {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Image must be jpg, png or webp",
		})
		return
	}

	key := utils.ProductImageKey(product.ID, header.Filename)
	if err := utils.UploadToS3(key, file, header.Size); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to upload image",
		})
		return
	}

	if err := database.DB.Model(product).Update("image_url", key).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to save image",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Image uploaded",
		Data:    map[string]interface{}{"image_url": key},
	})
}

// vendorOwnedProduct loads the product in the route and checks the caller
// owns it (admins bypass the ownership check). Writes the error response on
// failure.
func vendorOwnedProduct(w http.ResponseWriter, r *http.Request) (*models.Product, bool) {
	uid, authed := utils.GetUserID(r)
	if !authed {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Unauthorized",
		})
		return nil, false
	}

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid product id",
		})
		return nil, false
	}

	var product models.Product
	if err := database.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
				Success: false,
				Message: "Product not found",
			})
			return nil, false
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load product",
		})
		return nil, false
	}

	if utils.GetUserRole(r) != models.RoleAdmin && product.VendorID != uid {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{
			Success: false,
			Message: fmt.Sprintf("Product %d does not belong to you", product.ID),
		})
		return nil, false
	}

	return &product, true
}
