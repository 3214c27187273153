package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/opensocial/backend/internal/db"
	apperrors "github.com/opensocial/backend/internal/errors"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type SignUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserView is the public shape of a user; password and token columns never
// leave the server.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func ViewOf(user *db.User) UserView {
	return UserView{
		ID:        user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

type Handlers struct {
	authService *Service
}

func NewHandlers(authService *Service) *Handlers {
	return &Handlers{authService: authService}
}

func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}

	if err := validateSignUpRequest(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.ValidationError(err.Error()))
		return
	}

	user, err := h.authService.SignUp(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			apperrors.WriteError(w, requestID, apperrors.EmailExists())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.InternalError("failed to create user").WithCause(err))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusCreated, map[string]any{
		"message": "user created successfully",
		"user":    ViewOf(user),
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}

	if req.Email == "" || req.Password == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("email and password are required"))
		return
	}

	user, pair, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			apperrors.WriteError(w, requestID, apperrors.InvalidCredentials())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.InternalError("login failed").WithCause(err))
		return
	}

	setAuthCookies(w, pair)
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{
		"message": "logged in successfully",
		"user":    ViewOf(user),
	})
}

// Refresh rotates both tokens. Both cookies are re-set on success; only
// re-setting the access cookie would break every refresh after the first.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	cookie, err := r.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("refresh token missing"))
		return
	}

	_, pair, err := h.authService.Refresh(r.Context(), cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			apperrors.WriteError(w, requestID, apperrors.InvalidToken("refresh token expired"))
		case errors.Is(err, ErrInvalidToken):
			apperrors.WriteError(w, requestID, apperrors.InvalidToken("invalid refresh token"))
		default:
			apperrors.WriteError(w, requestID, apperrors.InternalError("token refresh failed").WithCause(err))
		}
		return
	}

	setAuthCookies(w, pair)
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{
		"message": "tokens refreshed",
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	// Best effort: revoke the stored refresh token when the caller still
	// carries a valid access cookie, but always clear both cookies.
	if cookie, err := r.Cookie(AccessCookie); err == nil && cookie.Value != "" {
		if user, err := h.authService.ResolveAccessToken(r.Context(), cookie.Value); err == nil {
			_ = h.authService.Logout(r.Context(), user.ID)
		}
	}

	clearAuthCookies(w)
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{
		"message": "logged out successfully",
	})
}

func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	code := r.URL.Query().Get("code")
	if code == "" {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("authorization code is required"))
		return
	}

	user, pair, err := h.authService.GoogleLogin(r.Context(), code)
	if err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			apperrors.WriteError(w, requestID, apperrors.EmailExists())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.OAuthError("google login failed").WithCause(err))
		return
	}

	setAuthCookies(w, pair)
	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{
		"message": "google login successful",
		"user":    ViewOf(user),
	})
}

func setAuthCookies(w http.ResponseWriter, pair *TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(AccessTokenExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(RefreshTokenExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func validateSignUpRequest(req *SignUpRequest) error {
	if req.Email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(req.Email) {
		return errors.New("invalid email format")
	}
	if req.Password == "" {
		return errors.New("password is required")
	}
	if len(req.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len(req.FirstName) < 2 {
		return errors.New("first name must be at least 2 characters")
	}
	if len(req.FirstName) > 15 || len(req.LastName) > 15 {
		return errors.New("names cannot exceed 15 characters")
	}
	return nil
}
