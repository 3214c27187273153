package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/opensocial/backend/internal/db"
	apperrors "github.com/opensocial/backend/internal/errors"
)

type contextKey string

const userContextKey contextKey = "user"

// AccessCookie and RefreshCookie are the two credential cookies.
const (
	AccessCookie  = "token"
	RefreshCookie = "refreshToken"
)

// Middleware is the auth gate: it reads the access cookie, verifies it and
// attaches the full identity record to the request context. Every 401 it
// produces carries the details.expired hint so the client attempts a silent
// refresh before forcing re-login.
func Middleware(authService *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := apperrors.GetRequestID(r.Context())

			cookie, err := r.Cookie(AccessCookie)
			if err != nil || cookie.Value == "" {
				apperrors.WriteError(w, requestID,
					apperrors.Unauthorized("not logged in").WithRefreshHint())
				return
			}

			user, err := authService.ResolveAccessToken(r.Context(), cookie.Value)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					apperrors.WriteError(w, requestID,
						apperrors.TokenExpired().WithRefreshHint())
				case errors.Is(err, ErrInvalidToken):
					apperrors.WriteError(w, requestID,
						apperrors.InvalidToken("invalid access token").WithRefreshHint())
				default:
					apperrors.WriteError(w, requestID, err)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin is the secondary role gate; it assumes Middleware already
// ran. Missing identity is unauthorized, wrong role is forbidden.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := apperrors.GetRequestID(r.Context())

		user := UserFromContext(r.Context())
		if user == nil {
			apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
			return
		}

		if user.Role != db.RoleAdmin {
			apperrors.WriteError(w, requestID, apperrors.Forbidden("admins only"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ContextWithUser attaches an identity the way Middleware does.
func ContextWithUser(ctx context.Context, user *db.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the identity attached by Middleware, or nil.
func UserFromContext(ctx context.Context) *db.User {
	user, ok := ctx.Value(userContextKey).(*db.User)
	if !ok {
		return nil
	}
	return user
}
