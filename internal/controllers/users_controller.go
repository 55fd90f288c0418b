package controllers

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/dealerflow/dealerflow/internal/engine"
	"github.com/dealerflow/dealerflow/internal/util"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

type UsersController struct {
	AuthController
}

func NewUsersController(userRepo engine.UserRepo) *UsersController {
	return &UsersController{
		AuthController: AuthController{
			UserRepo: userRepo,
		},
	}
}

func (c *UsersController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users", c.RequireAuth(c.handleGetUsers))
	mux.HandleFunc("POST /api/users", c.RequireAuth(c.handleCreateUser))
	mux.HandleFunc("GET /api/users/{id}", c.RequireAuth(c.handleGetUserById))
	mux.HandleFunc("DELETE /api/users/{id}", c.RequireAuth(c.handleDeleteUser))
}

// userApiView strips the credential columns from API output.
func userApiView(u *domain.User) map[string]any {
	view := map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"enabled":  u.Enabled.Bool,
	}
	if u.Created.Valid {
		view["created"] = u.Created.Time
	}
	return view
}

func (c *UsersController) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := c.UserRepo.FindAll()
	if err != nil {
		slog.Error("Failed to get users", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get users"})
		return
	}
	views := make([]map[string]any, 0, len(*users))
	for i := range *users {
		views = append(views, userApiView(&(*users)[i]))
	}
	util.WriteJSONResponse(w, http.StatusOK, views)
}

// handleCreateUser creates a user with a bcrypt hashed password and a fresh
// API key. The key is returned exactly once, in this response.
func (c *UsersController) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.CreateUserRequest](r)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid user data"})
		return
	}
	if req.Username == "" || req.Password == "" {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("rand.Read failed", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	apiKey := hex.EncodeToString(buf)

	user := &domain.User{
		Username: req.Username,
		Password: string(hashedPassword),
		ApiKey:   sql.NullString{String: apiKey, Valid: true},
		Enabled:  sql.NullBool{Bool: true, Valid: true},
	}
	id, err := c.UserRepo.Save(user)
	if err != nil {
		slog.Error("Failed to create user", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create user"})
		return
	}

	util.WriteJSONResponse(w, http.StatusCreated, models.CreateUserResponse{
		ID:       id,
		Username: user.Username,
		ApiKey:   apiKey,
	})
}

func (c *UsersController) handleGetUserById(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
		return
	}
	user, err := c.UserRepo.FindByID(id)
	if err != nil {
		slog.Error("Failed to get user", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get user"})
		return
	}
	if user == nil {
		util.WriteJSONResponse(w, http.StatusNotFound, map[string]string{"error": "User not found"})
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, userApiView(user))
}

func (c *UsersController) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
		return
	}
	if err := c.UserRepo.DeleteByID(id); err != nil {
		slog.Error("Failed to delete user", "error", err)
		util.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete user"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
