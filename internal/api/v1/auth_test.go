package v1

import (
	"net/http"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/aroha-app/aroha-backend/internal/config"
)

func newAuthRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	t.Setenv("AROHA_JWT_SECRET", "test-secret-key-that-is-long-enough-123456")

	db, mock := newMockDB(t)
	cfg := &config.Config{}
	h, err := NewAuthHandlers(cfg, db)
	if err != nil {
		t.Fatalf("NewAuthHandlers: %v", err)
	}

	r := gin.New()
	r.POST("/auth/login", h.LoginHandler())
	r.GET("/auth/oidc/login", h.OIDCLoginHandler())
	r.GET("/auth/me", asUser(testUser()), h.MeHandler())
	return r, mock
}

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestLogin_OK(t *testing.T) {
	r, mock := newAuthRouter(t)
	hash := bcryptHash(t, "correct-horse")
	mock.ExpectQuery("SELECT.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "oidc_sub", "created_at", "updated_at"}).
			AddRow("user-1", "rangi@example.com", "Rangi", hash, nil, time.Now(), time.Now()))

	w := performJSON(t, r, http.MethodPost, "/auth/login",
		`{"email":"rangi@example.com","password":"correct-horse"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"token"`) {
		t.Errorf("expected session token, got %s", w.Body.String())
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	r, mock := newAuthRouter(t)
	hash := bcryptHash(t, "correct-horse")
	mock.ExpectQuery("SELECT.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "oidc_sub", "created_at", "updated_at"}).
			AddRow("user-1", "rangi@example.com", "Rangi", hash, nil, time.Now(), time.Now()))

	w := performJSON(t, r, http.MethodPost, "/auth/login",
		`{"email":"rangi@example.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestLogin_UnknownUserSameResponse(t *testing.T) {
	r, mock := newAuthRouter(t)
	mock.ExpectQuery("SELECT.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "oidc_sub", "created_at", "updated_at"}))

	w := performJSON(t, r, http.MethodPost, "/auth/login",
		`{"email":"ghost@example.com","password":"whatever"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid credentials") {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestLogin_OIDCOnlyAccount(t *testing.T) {
	r, mock := newAuthRouter(t)
	mock.ExpectQuery("SELECT.*FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "oidc_sub", "created_at", "updated_at"}).
			AddRow("user-1", "rangi@example.com", "Rangi", nil, "oidc-sub-1", time.Now(), time.Now()))

	w := performJSON(t, r, http.MethodPost, "/auth/login",
		`{"email":"rangi@example.com","password":"whatever"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestOIDCLogin_Disabled(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := performJSON(t, r, http.MethodGet, "/auth/oidc/login", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMe(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := performJSON(t, r, http.MethodGet, "/auth/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "rangi@example.com") {
		t.Errorf("expected user in response, got %s", w.Body.String())
	}
}
