package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify converts a title into a URL slug, suffixing with a counter when
// the slug is already taken.
func slugify(db *gorm.DB, title string) string {
	base := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if base == "" {
		base = "post"
	}
	slug := base
	for i := 2; ; i++ {
		var count int64
		db.Model(&models.BlogPost{}).Where("slug = ?", slug).Count(&count)
		if count == 0 {
			return slug
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// ListPublishedPosts returns published posts, newest first.
func ListPublishedPosts(w http.ResponseWriter, r *http.Request) {
	var posts []models.BlogPost
	err := database.DB.
		Where("status = ?", models.PostPublished).
		Order("publish_date DESC, created_at DESC").
		Find(&posts).Error
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load posts",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    posts,
	})
}

// GetPostBySlug returns a single published post.
func GetPostBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var post models.BlogPost
	err := database.DB.
		Where("slug = ? AND status = ?", slug, models.PostPublished).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
				Success: false,
				Message: "Post not found",
			})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load post",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    post,
	})
}

type blogPostRequest struct {
	Title           string   `json:"title" validate:"required"`
	Content         string   `json:"content"`
	Excerpt         string   `json:"excerpt"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	Status          string   `json:"status"`
	FeaturedImage   string   `json:"featured_image"`
	PublishDate     string   `json:"publish_date"`
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
}

// CreatePost creates a blog post authored by the caller.
func CreatePost(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
			Success: false,
			Message: "Unauthorized",
		})
		return
	}

	var req blogPostRequest
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

	status := req.Status
	switch status {
	case "":
		status = models.PostDraft
	case models.PostDraft, models.PostPublished, models.PostScheduled:
	default:
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
			Success: false,
			Message: "Invalid post status",
		})
		return
	}

	post := models.BlogPost{
		AuthorID:        uid,
		Title:           strings.TrimSpace(req.Title),
		Slug:            slugify(database.DB, req.Title),
		Content:         req.Content,
		Excerpt:         req.Excerpt,
		Category:        req.Category,
		Status:          status,
		FeaturedImage:   req.FeaturedImage,
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
	}
	if len(req.Tags) > 0 {
		raw, _ := json.Marshal(req.Tags)
		post.Tags = string(raw)
	}
	if req.PublishDate != "" {
		if t, err := time.Parse(time.RFC3339, req.PublishDate); err == nil {
			post.PublishDate = &t
		}
	}
	if status == models.PostPublished && post.PublishDate == nil {
		now := time.Now()
		post.PublishDate = &now
	}

	if err := database.DB.Create(&post).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to create post",
		})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Post created",
		Data:    post,
	})
}

// UpdatePost updates the caller's own post.
func UpdatePost(w http.ResponseWriter, r *http.Request) {
	post, ok := authorOwnedPost(w, r)
	if !ok {
		return
	}

	var req blogPostRequest
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
	if req.Title != "" && req.Title != post.Title {
		updates["title"] = strings.TrimSpace(req.Title)
		updates["slug"] = slugify(database.DB, req.Title)
	}
	if req.Content != "" {
		updates["content"] = req.Content
	}
	if req.Excerpt != "" {
		updates["excerpt"] = req.Excerpt
	}
	if req.Category != "" {
		updates["category"] = req.Category
	}
	if len(req.Tags) > 0 {
		raw, _ := json.Marshal(req.Tags)
		updates["tags"] = string(raw)
	}
	if req.Status != "" {
		switch req.Status {
		case models.PostDraft, models.PostPublished, models.PostScheduled:
			updates["status"] = req.Status
			if req.Status == models.PostPublished && post.PublishDate == nil {
				updates["publish_date"] = time.Now()
			}
		default:
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{
				Success: false,
				Message: "Invalid post status",
			})
			return
		}
	}
	if req.FeaturedImage != "" {
		updates["featured_image"] = req.FeaturedImage
	}
	if req.PublishDate != "" {
		if t, err := time.Parse(time.RFC3339, req.PublishDate); err == nil {
			updates["publish_date"] = t
		}
	}
	if req.MetaTitle != "" {
		updates["meta_title"] = req.MetaTitle
	}
	if req.MetaDescription != "" {
		updates["meta_description"] = req.MetaDescription
	}

	if len(updates) > 0 {
		if err := database.DB.Model(post).Updates(updates).Error; err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
				Success: false,
				Message: "Failed to update post",
			})
			return
		}
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Post updated",
		Data:    post,
	})
}

// DeletePost removes the caller's own post.
func DeletePost(w http.ResponseWriter, r *http.Request) {
	post, ok := authorOwnedPost(w, r)
	if !ok {
		return
	}

	if err := database.DB.Delete(post).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to delete post",
		})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Post deleted",
	})
}

func authorOwnedPost(w http.ResponseWriter, r *http.Request) (*models.BlogPost, bool) {
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
			Message: "Invalid post id",
		})
		return nil, false
	}

	var post models.BlogPost
	if err := database.DB.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
				Success: false,
				Message: "Post not found",
			})
			return nil, false
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Failed to load post",
		})
		return nil, false
	}

	if utils.GetUserRole(r) != models.RoleAdmin && post.AuthorID != uid {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{
			Success: false,
			Message: "Post does not belong to you",
		})
		return nil, false
	}

	return &post, true
}
