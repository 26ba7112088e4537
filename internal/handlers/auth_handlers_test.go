package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ChatRelay/server/internal/models"
	"ChatRelay/server/internal/utils"
)

func TestLoginUnknownIdentity(t *testing.T) {
	userService = &mockUserService{
		GetUserByIdentityFn: func(ctx context.Context, identity string) (*models.User, error) {
			return nil, models.ErrUserNotFound
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identity":"ghost","password":"pw"}`))
	rec := httptest.NewRecorder()
	Login(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := utils.HashPassword("correct")
	if err != nil {
		t.Fatal(err)
	}
	userService = &mockUserService{
		GetUserByIdentityFn: func(ctx context.Context, identity string) (*models.User, error) {
			return &models.User{ID: 7, Username: "alice", PasswordHash: hash}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identity":"alice","password":"wrong"}`))
	rec := httptest.NewRecorder()
	Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoginSuccess(t *testing.T) {
	hash, err := utils.HashPassword("correct")
	if err != nil {
		t.Fatal(err)
	}
	userService = &mockUserService{
		GetUserByIdentityFn: func(ctx context.Context, identity string) (*models.User, error) {
			if identity != "alice@example.com" {
				t.Errorf("unexpected identity %q", identity)
			}
			return &models.User{ID: 7, Username: "alice", PasswordHash: hash}, nil
		},
	}

	// legacy clients send the identity in an "email" field
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"alice@example.com","password":"correct"}`))
	rec := httptest.NewRecorder()
	Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		UserID int    `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.UserID != 7 {
		t.Errorf("expected user_id 7, got %d", resp.UserID)
	}
	if resp.Token == "" {
		t.Error("expected a token")
	}
}

func TestRegisterDuplicateIdentity(t *testing.T) {
	userService = &mockUserService{
		CheckUserExistsFn: func(ctx context.Context, username, email string) (bool, error) {
			return true, nil
		},
	}

	body := `{"username":"alice","email":"alice@example.com","password":"pw"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegisterRaceLosesToUniqueIndex(t *testing.T) {
	// the existence check passed but another registration won the insert
	userService = &mockUserService{
		CheckUserExistsFn: func(ctx context.Context, username, email string) (bool, error) {
			return false, nil
		},
		CreateUserFn: func(ctx context.Context, user *models.User) (int, error) {
			return 0, models.ErrDuplicateIdentity
		},
	}

	body := `{"username":"alice","email":"alice@example.com","password":"pw"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"username":"alice"}`))
	rec := httptest.NewRecorder()
	Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegisterSuccess(t *testing.T) {
	var created *models.User
	userService = &mockUserService{
		CheckUserExistsFn: func(ctx context.Context, username, email string) (bool, error) {
			return false, nil
		},
		CreateUserFn: func(ctx context.Context, user *models.User) (int, error) {
			created = user
			return 42, nil
		},
	}

	body := `{"username":"bob","email":"bob@example.com","password":"pw"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if created == nil || created.Username != "bob" {
		t.Fatalf("user was not passed to CreateUser: %+v", created)
	}
	var resp struct {
		UserID int    `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.UserID != 42 || resp.Token == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
