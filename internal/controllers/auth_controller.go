package controllers

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dealerflow/dealerflow/internal/config"
	"github.com/dealerflow/dealerflow/internal/engine"
	"github.com/dealerflow/dealerflow/internal/util"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/core"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

type AuthController struct {
	UserRepo engine.UserRepo
}

func NewAuthController(userRepo engine.UserRepo) *AuthController {
	return &AuthController{UserRepo: userRepo}
}

func (c *AuthController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", c.handleLogin)
	mux.HandleFunc("POST /api/logout", c.handleLogout)
}

// RequireAuth accepts a session cookie or an X-API-Key header. Everything
// behind it gets the username in the request context.
func (c *AuthController) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1) Try session cookie
		if cookie, err := r.Cookie("sessionId"); err == nil && cookie.Value != "" {
			u, err := c.UserRepo.FindBySessionID(cookie.Value, time.Now().UTC())
			if err == nil && u != nil {
				ctx := context.WithValue(r.Context(), core.CtxKeyUsername, u.Username)
				next(w, r.WithContext(ctx))
				return
			}
		}
		// 2) Try API key from headers
		// Supported headers: X-API-Key: <key>
		apiKey := r.Header.Get("X-API-Key")
		if apiKey != "" {
			u, err := c.UserRepo.FindByApiKey(apiKey)
			if err == nil && u != nil {
				ctx := context.WithValue(r.Context(), core.CtxKeyUsername, u.Username)
				next(w, r.WithContext(ctx))
				return
			}
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
}

func (c *AuthController) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.LoginRequest](r)
	if err != nil {
		util.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid login data"})
		return
	}
	if req.Username == "" || req.Password == "" {
		util.WriteJSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "Username and password are required"})
		return
	}
	u, err := c.UserRepo.FindByUsername(req.Username)
	if err != nil {
		slog.Error("FindByUsername failed", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	if u == nil || !u.Enabled.Bool {
		util.WriteJSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		util.WriteJSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
		return
	}
	// Generate session id
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("rand.Read failed", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	sessionID := hex.EncodeToString(buf)
	expiryHours := config.GetSystemSettingInteger(config.WEB_SESSION_EXPIRY_HOURS)
	expires := time.Now().UTC().Add(time.Duration(expiryHours) * time.Hour)
	if err := c.UserRepo.UpdateSession(u.ID, sessionID, sql.NullTime{Time: expires, Valid: true}); err != nil {
		slog.Error("UpdateSession failed", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "sessionId",
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	util.WriteJSONResponse(w, http.StatusOK, models.LoginResponse{OK: true})
}

func (c *AuthController) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("sessionId")
	if err == nil && cookie.Value != "" {
		if err := c.UserRepo.ClearSessionBySessionID(cookie.Value); err != nil {
			slog.Error("ClearSessionBySessionID failed", "error", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     "sessionId",
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
