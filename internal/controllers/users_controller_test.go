package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

func usersRequest(t *testing.T, repo *MockUserRepo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	if repo.FindByApiKeyFunc == nil {
		repo.FindByApiKeyFunc = func(apiKey string) (*domain.User, error) {
			return &domain.User{Username: "tester"}, nil
		}
	}
	c := NewUsersController(repo)
	mux := http.NewServeMux()
	c.RegisterRoutes(mux)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("X-API-Key", "key")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestUsersController_CreateUserReturnsApiKeyOnce(t *testing.T) {
	var saved *domain.User
	repo := &MockUserRepo{
		SaveFunc: func(u *domain.User) (int64, error) {
			saved = u
			return 9, nil
		},
	}

	w := usersRequest(t, repo, "POST", "/api/users", `{"username":"sales","password":"hunter2"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp models.CreateUserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.ID != 9 || resp.Username != "sales" {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if len(resp.ApiKey) != 64 {
		t.Errorf("Expected a 64 char hex api key, got %q", resp.ApiKey)
	}
	if saved == nil {
		t.Fatal("Expected the user to be saved")
	}
	if saved.Password == "hunter2" {
		t.Error("Expected the password to be hashed before storage")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(saved.Password), []byte("hunter2")); err != nil {
		t.Errorf("Stored hash does not match the password: %v", err)
	}
	if !saved.Enabled.Bool {
		t.Error("Expected new users to be enabled")
	}
}

func TestUsersController_CreateUserRequiresCredentials(t *testing.T) {
	w := usersRequest(t, &MockUserRepo{}, "POST", "/api/users", `{"username":"sales"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestUsersController_ListStripsCredentials(t *testing.T) {
	hashed, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.DefaultCost)
	repo := &MockUserRepo{
		FindAllFunc: func() (*[]domain.User, error) {
			list := []domain.User{
				{ID: 1, Username: "admin", Password: string(hashed)},
			}
			return &list, nil
		},
	}

	w := usersRequest(t, repo, "GET", "/api/users", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, string(hashed)) || strings.Contains(body, "password") || strings.Contains(body, "apiKey") {
		t.Errorf("Expected credentials stripped from listing, got %s", body)
	}
	if !strings.Contains(body, "admin") {
		t.Errorf("Expected the username in the listing, got %s", body)
	}
}

func TestUsersController_GetUserNotFound(t *testing.T) {
	w := usersRequest(t, &MockUserRepo{}, "GET", "/api/users/42", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
