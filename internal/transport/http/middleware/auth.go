package middleware

import (
	"context"
	"net/http"

	"github.com/iamasit07/pingline/backend/internal/service/token"
	"github.com/iamasit07/pingline/backend/pkg/httputil"
)

// AuthMiddleware wraps the next handler and validates the access token from
// cookie or Authorization header. On success the user identity is placed on
// the request context.
func AuthMiddleware(next http.HandlerFunc, tokens *token.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := httputil.GetAccessTokenFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := tokens.VerifyAccess(tokenString)
		if err != nil {
			httputil.ClearTokenPairCookies(w)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "user_id", claims.UserID)
		ctx = context.WithValue(ctx, "username", claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
