package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/globalconnect024/backend/database"
	"github.com/globalconnect024/backend/middleware"
	"github.com/globalconnect024/backend/models"
)

func setupAuthDB(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
}

func jsonRequest(t *testing.T, method, target string, body map[string]interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func registerUser(t *testing.T, username, email string) {
	t.Helper()
	rec := httptest.NewRecorder()
	Register(rec, jsonRequest(t, "POST", "/api/register", map[string]interface{}{
		"username": username,
		"email":    email,
		"password": "secret123",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// The lockout tracker is process-global and keyed by user id; ids repeat
	// across the per-test in-memory databases, so drop any lock this test's
	// failed logins leave behind.
	var user models.User
	if err := database.DB.Where("username = ?", username).First(&user).Error; err != nil {
		t.Fatalf("load registered user: %v", err)
	}
	t.Cleanup(func() { middleware.ResetFailedLogin(user.ID) })
}

func TestRegisterDuplicateUsername(t *testing.T) {
	setupAuthDB(t)
	registerUser(t, "jane", "jane@example.com")

	rec := httptest.NewRecorder()
	Register(rec, jsonRequest(t, "POST", "/api/register", map[string]interface{}{
		"username": "jane",
		"email":    "other@example.com",
		"password": "secret123",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate username: expected 400, got %d", rec.Code)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	setupAuthDB(t)
	rec := httptest.NewRecorder()
	Register(rec, jsonRequest(t, "POST", "/api/register", map[string]interface{}{
		"username": "mallory",
		"email":    "mallory@example.com",
		"password": "secret123",
		"role":     "admin",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("admin self-registration: expected 400, got %d", rec.Code)
	}
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	setupAuthDB(t)
	registerUser(t, "jane", "jane@example.com")

	for _, identifier := range []string{"jane", "jane@example.com"} {
		rec := httptest.NewRecorder()
		Login(rec, jsonRequest(t, "POST", "/api/login", map[string]interface{}{
			"identifier": identifier,
			"password":   "secret123",
		}))
		if rec.Code != http.StatusOK {
			t.Fatalf("login with %q: expected 200, got %d: %s", identifier, rec.Code, rec.Body.String())
		}
		var resp struct {
			Data struct {
				AccessToken  string `json:"access_token"`
				RefreshToken string `json:"refresh_token"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Data.AccessToken == "" || resp.Data.RefreshToken == "" {
			t.Fatal("expected both tokens in login response")
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	setupAuthDB(t)
	registerUser(t, "jane", "jane@example.com")

	rec := httptest.NewRecorder()
	Login(rec, jsonRequest(t, "POST", "/api/login", map[string]interface{}{
		"identifier": "jane",
		"password":   "wrong-pass",
	}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRefreshRotation(t *testing.T) {
	setupAuthDB(t)
	registerUser(t, "jane", "jane@example.com")

	loginRec := httptest.NewRecorder()
	Login(loginRec, jsonRequest(t, "POST", "/api/login", map[string]interface{}{
		"identifier": "jane",
		"password":   "secret123",
	}))
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", loginRec.Code, loginRec.Body.String())
	}
	var loginResp struct {
		Data struct {
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(loginRec.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	refreshRec := httptest.NewRecorder()
	Refresh(refreshRec, jsonRequest(t, "POST", "/api/token/refresh", map[string]interface{}{
		"refresh": loginResp.Data.RefreshToken,
	}))
	if refreshRec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", refreshRec.Code, refreshRec.Body.String())
	}

	// The old refresh token was rotated out and cannot be replayed.
	replayRec := httptest.NewRecorder()
	Refresh(replayRec, jsonRequest(t, "POST", "/api/token/refresh", map[string]interface{}{
		"refresh": loginResp.Data.RefreshToken,
	}))
	if replayRec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh token: expected 401, got %d", replayRec.Code)
	}
}
