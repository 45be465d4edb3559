package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/iamasit07/pingline/backend/internal/errs"
	"github.com/iamasit07/pingline/backend/internal/repository/postgres"
	"github.com/iamasit07/pingline/backend/internal/service/token"
	"github.com/iamasit07/pingline/backend/pkg/auth"
	"github.com/iamasit07/pingline/backend/pkg/httputil"
)

// UserStore is the slice of user persistence the HTTP handlers need.
type UserStore interface {
	CreateUser(username, fullname, passwordHash, email, googleID, avatarURL string) (int64, error)
	GetUserByID(userID int64) (*postgres.User, error)
	GetUserByIdentifier(identifier string) (*postgres.User, error)
	GetUserByEmail(email string) (*postgres.User, error)
	GetUsersByIDs(userIDs []int64) ([]postgres.User, error)
	UpdateUserGoogleID(email, googleID string) error
}

type AuthHandler struct {
	UserRepo UserStore
	Tokens   *token.Service
}

func NewAuthHandler(userRepo UserStore, tokens *token.Service) *AuthHandler {
	return &AuthHandler{
		UserRepo: userRepo,
		Tokens:   tokens,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Fullname string `json:"fullname"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}

	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}
	if len(req.Username) < 3 || len(req.Username) > 50 {
		http.Error(w, "Username must be between 3 and 50 characters", http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		http.Error(w, "Invalid email format", http.StatusBadRequest)
		return
	}

	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.UserRepo.GetUserByIdentifier(req.Username)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		existing, err = h.UserRepo.GetUserByIdentifier(req.Email)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}
	if existing != nil {
		http.Error(w, "Username or email already taken", http.StatusConflict)
		return
	}

	hashedPwd, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	req.Fullname = strings.TrimSpace(req.Fullname)
	userID, err := h.UserRepo.CreateUser(req.Username, req.Fullname, hashedPwd, req.Email, "", "")
	if err != nil {
		// The pre-check races concurrent registrations; the unique constraint
		// is the authority.
		if errors.Is(err, errs.ErrAlreadyExists) {
			http.Error(w, "Username or email already taken", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	user, err := h.UserRepo.GetUserByID(userID)
	if err != nil || user == nil {
		http.Error(w, "Failed to load created user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user": user.Public(),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Username   string `json:"username"`
		Password   string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}

	user, err := h.UserRepo.GetUserByIdentifier(identifier)
	if err != nil || user == nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, refreshToken, err := h.Tokens.IssuePair(user.ID)
	if err != nil {
		log.Printf("[AUTH] Failed to issue token pair for user %d: %v", user.ID, err)
		http.Error(w, "Failed to generate tokens", http.StatusInternalServerError)
		return
	}

	httputil.SetTokenPairCookies(w, accessToken, refreshToken)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user":         user.Public(),
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

// RefreshToken rotates the refresh token. A Superseded failure means the
// presented token was already rotated away (replay or concurrent refresh);
// both map to 401 and require a fresh login — no silent recovery, since
// reuse may indicate token theft.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// Body is optional; the cookie is the fallback.
	json.NewDecoder(r.Body).Decode(&req)

	tokenString := req.RefreshToken
	if tokenString == "" {
		tokenString, _ = httputil.GetRefreshTokenFromRequest(r)
	}
	if tokenString == "" {
		http.Error(w, "Refresh token is required", http.StatusUnauthorized)
		return
	}

	accessToken, refreshToken, userID, err := h.Tokens.Rotate(tokenString)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredential) || errors.Is(err, errs.ErrSuperseded) {
			log.Printf("[AUTH] Refresh rejected: %v", err)
			httputil.ClearTokenPairCookies(w)
			http.Error(w, "Invalid or superseded refresh token", http.StatusUnauthorized)
			return
		}
		log.Printf("[AUTH] Refresh failed: %v", err)
		http.Error(w, "Failed to refresh tokens", http.StatusInternalServerError)
		return
	}

	log.Printf("[AUTH] Rotated refresh token for user %d", userID)
	httputil.SetTokenPairCookies(w, accessToken, refreshToken)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.Tokens.Revoke(userID); err != nil {
		log.Printf("[AUTH] Failed to revoke refresh token for user %d: %v", userID, err)
		http.Error(w, "Failed to logout", http.StatusInternalServerError)
		return
	}

	httputil.ClearTokenPairCookies(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"message": "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.UserRepo.GetUserByID(userID)
	if err != nil || user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"user": user.Public()})
}
