package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/site-visit-go/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenValidator resolves an access token to its user.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (userID string, err error)
}

// AuthRequired accepts requests carrying a valid access token in the
// Authorization header or the jwt cookie, and stores its user in the context.
func AuthRequired(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			tokenString := jwtauth.TokenFromHeader(r)
			if tokenString == "" {
				tokenString = jwtauth.TokenFromCookie(r)
			}
			if tokenString == "" {
				response.HandleError(w, response.ErrInvalidToken)
				return
			}

			userID, err := tokens.ValidateAccessToken(tokenString)
			if err != nil {
				slog.Debug("Rejected access token", "error", err)
				response.HandleError(w, response.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(hfn)
	}
}

// UserID returns the user of the access token accepted by AuthRequired.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
