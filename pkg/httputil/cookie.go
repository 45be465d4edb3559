package httputil

import (
	"errors"
	"net/http"
	"time"

	"github.com/iamasit07/pingline/backend/internal/config"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// SetTokenPairCookies sets both credential cookies on the response.
func SetTokenPairCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	accessTTL := time.Duration(config.AppConfig.AccessTokenTTLMinutes) * time.Minute
	refreshTTL := time.Duration(config.AppConfig.RefreshTokenTTLDays) * 24 * time.Hour

	setCookie(w, AccessCookieName, accessToken, int(accessTTL.Seconds()))
	setCookie(w, RefreshCookieName, refreshToken, int(refreshTTL.Seconds()))
}

// ClearTokenPairCookies removes both credential cookies.
func ClearTokenPairCookies(w http.ResponseWriter) {
	setCookie(w, AccessCookieName, "", -1)
	setCookie(w, RefreshCookieName, "", -1)
}

func setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	isProduction := config.GetEnv("ENVIRONMENT", "development") == "production"

	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isProduction,
	}

	// SameSite=None requires Secure=true, so use Lax for development
	if isProduction {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	} else {
		cookie.SameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, cookie)
}

// GetAccessTokenFromRequest extracts the access token from the request,
// checking the cookie first and falling back to the Authorization header.
// Both forms are accepted for compatibility with varied clients.
func GetAccessTokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Support "Bearer <token>" format
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			return authHeader[7:], nil
		}
		return authHeader, nil
	}

	return "", errors.New("no access token found in cookie or header")
}

// GetRefreshTokenFromRequest extracts the refresh token from the cookie.
// Callers that accept it in the request body should try that first.
func GetRefreshTokenFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", errors.New("refresh cookie not found")
	}
	return cookie.Value, nil
}
