package http

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/iamasit07/pingline/backend/internal/config"
	"github.com/iamasit07/pingline/backend/internal/service/token"
	"github.com/iamasit07/pingline/backend/pkg/auth"
	"github.com/iamasit07/pingline/backend/pkg/httputil"
)

type OAuthHandler struct {
	UserRepo UserStore
	Tokens   *token.Service
	Config   *config.OAuthConfig
}

func NewOAuthHandler(userRepo UserStore, tokens *token.Service, cfg *config.OAuthConfig) *OAuthHandler {
	return &OAuthHandler{
		UserRepo: userRepo,
		Tokens:   tokens,
		Config:   cfg,
	}
}

// GoogleLogin redirects the user to Google
func (h *OAuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url := h.Config.GoogleLoginConfig.AuthCodeURL("state")
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback handles the response from Google. An unknown email is
// auto-provisioned as a new account; a known one is logged in (linking the
// Google ID if it wasn't linked yet). Either way the user ends up with a
// fresh token pair.
func (h *OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	frontend := config.AppConfig.FrontendURL

	code := r.URL.Query().Get("code")
	oauthToken, err := h.Config.GoogleLoginConfig.Exchange(context.Background(), code)
	if err != nil {
		log.Printf("[OAUTH] Failed to exchange token: %v", err)
		http.Redirect(w, r, frontend+"/login?error=auth_failed", http.StatusTemporaryRedirect)
		return
	}

	userInfo, err := config.GetGoogleUserInfo(oauthToken.AccessToken)
	if err != nil {
		log.Printf("[OAUTH] Failed to get user info: %v", err)
		http.Redirect(w, r, frontend+"/login?error=user_info_failed", http.StatusTemporaryRedirect)
		return
	}

	user, err := h.UserRepo.GetUserByEmail(userInfo.Email)
	if err != nil {
		log.Printf("[OAUTH] User lookup failed: %v", err)
		http.Redirect(w, r, frontend+"/login?error=server_error", http.StatusTemporaryRedirect)
		return
	}

	var userID int64
	if user != nil {
		userID = user.ID
		// Auto-link Google ID if missing
		if !user.GoogleID.Valid {
			if err := h.UserRepo.UpdateUserGoogleID(userInfo.Email, userInfo.ID); err != nil {
				log.Printf("[OAUTH] Failed to link Google ID: %v", err)
			}
		}
	} else {
		username := usernameFromEmail(userInfo.Email)
		userID, err = h.UserRepo.CreateUser(username, userInfo.Name, "", userInfo.Email, userInfo.ID, userInfo.Picture)
		if err != nil {
			log.Printf("[OAUTH] Failed to provision user: %v", err)
			http.Redirect(w, r, frontend+"/login?error=server_error", http.StatusTemporaryRedirect)
			return
		}
		log.Printf("[OAUTH] Provisioned new user %s (ID: %d)", username, userID)
	}

	accessToken, refreshToken, err := h.Tokens.IssuePair(userID)
	if err != nil {
		log.Printf("[OAUTH] Failed to issue token pair: %v", err)
		http.Redirect(w, r, frontend+"/login?error=token_error", http.StatusTemporaryRedirect)
		return
	}

	httputil.SetTokenPairCookies(w, accessToken, refreshToken)
	http.Redirect(w, r, frontend+"/chat", http.StatusTemporaryRedirect)
}

// usernameFromEmail derives a unique-enough username from the local part of
// the email plus a short random suffix.
func usernameFromEmail(email string) string {
	local := email
	if i := strings.Index(email, "@"); i > 0 {
		local = email[:i]
	}
	local = strings.ToLower(local)
	return local + "-" + auth.GenerateToken()[:6]
}
