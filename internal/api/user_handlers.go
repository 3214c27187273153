package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/opensocial/backend/internal/auth"
	"github.com/opensocial/backend/internal/cache"
	"github.com/opensocial/backend/internal/db"
	apperrors "github.com/opensocial/backend/internal/errors"
)

type UserHandlers struct {
	userRepo    *db.UserRepository
	authService *auth.Service
	cache       *cache.Cache
}

func NewUserHandlers(userRepo *db.UserRepository, authService *auth.Service, c *cache.Cache) *UserHandlers {
	return &UserHandlers{
		userRepo:    userRepo,
		authService: authService,
		cache:       c,
	}
}

type EditPasswordRequest struct {
	PreviousPassword string `json:"previousPassword"`
	NewPassword      string `json:"newPassword"`
}

// Profile handles GET /api/profile
func (h *UserHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, auth.ViewOf(user))
}

// editableProfileFields is the strict whitelist for PATCH /api/edit-profile.
// A request carrying any other key is rejected whole.
var editableProfileFields = map[string]bool{
	"firstName": true,
	"lastName":  true,
}

// EditProfile handles PATCH /api/edit-profile
func (h *UserHandlers) EditProfile(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if len(fields) == 0 {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("no fields to update"))
		return
	}

	for key := range fields {
		if !editableProfileFields[key] {
			apperrors.WriteError(w, requestID,
				apperrors.ValidationError("field cannot be updated: "+key))
			return
		}
	}

	firstName := user.FirstName
	lastName := user.LastName
	if raw, ok := fields["firstName"]; ok {
		if err := json.Unmarshal(raw, &firstName); err != nil {
			apperrors.WriteError(w, requestID, apperrors.ValidationError("firstName must be a string"))
			return
		}
	}
	if raw, ok := fields["lastName"]; ok {
		if err := json.Unmarshal(raw, &lastName); err != nil {
			apperrors.WriteError(w, requestID, apperrors.ValidationError("lastName must be a string"))
			return
		}
	}

	if err := validateName(firstName, lastName); err != nil {
		apperrors.WriteError(w, requestID, apperrors.ValidationError(err.Error()))
		return
	}

	updated, err := h.userRepo.UpdateName(r.Context(), user.ID, firstName, lastName)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to update profile").WithCause(err))
		return
	}

	h.invalidateDirectory(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, auth.ViewOf(updated))
}

// EditPassword handles PATCH /api/edit-password
func (h *UserHandlers) EditPassword(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	var req EditPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}

	if req.PreviousPassword == "" || req.NewPassword == "" {
		apperrors.WriteError(w, requestID,
			apperrors.ValidationError("previousPassword and newPassword are required"))
		return
	}
	if len(req.NewPassword) < 8 {
		apperrors.WriteError(w, requestID,
			apperrors.ValidationError("password must be at least 8 characters"))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), user, req.PreviousPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			apperrors.WriteError(w, requestID, apperrors.InvalidCredentials())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.ValidationError(err.Error()))
		return
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, map[string]any{
		"message": "password updated successfully",
	})
}

// ListUsers handles GET /api/users with optional ?search= name filter.
// The unfiltered directory is served from cache.
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	search := r.URL.Query().Get("search")

	if search == "" && h.cache != nil {
		var cached []auth.UserView
		if h.cache.GetJSON(r.Context(), cache.UserListKey, &cached) {
			apperrors.WriteJSON(w, requestID, http.StatusOK, cached)
			return
		}
	}

	var users []db.User
	var err error
	if search != "" {
		users, err = h.userRepo.SearchByName(r.Context(), search)
	} else {
		users, err = h.userRepo.List(r.Context())
	}
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to list users").WithCause(err))
		return
	}

	views := make([]auth.UserView, 0, len(users))
	for i := range users {
		views = append(views, auth.ViewOf(&users[i]))
	}

	if search == "" && h.cache != nil {
		h.cache.SetJSON(r.Context(), cache.UserListKey, views, cache.UserListTTL)
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, views)
}

// AdminEditUser handles PATCH /api/admin/user/{userId}. Admins may also
// change the email, unlike self-service profile edits.
func (h *UserHandlers) AdminEditUser(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	userID, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid user ID"))
		return
	}

	target, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			apperrors.WriteError(w, requestID, apperrors.UserNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load user").WithCause(err))
		return
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}

	allowed := map[string]bool{"firstName": true, "lastName": true, "email": true}
	for key := range fields {
		if !allowed[key] {
			apperrors.WriteError(w, requestID,
				apperrors.ValidationError("field cannot be updated: "+key))
			return
		}
	}

	firstName, lastName := target.FirstName, target.LastName
	var email string
	for key, raw := range fields {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			apperrors.WriteError(w, requestID, apperrors.ValidationError(key+" must be a string"))
			return
		}
		switch key {
		case "firstName":
			firstName = value
		case "lastName":
			lastName = value
		case "email":
			email = value
		}
	}

	updated := target
	if firstName != target.FirstName || lastName != target.LastName {
		if err := validateName(firstName, lastName); err != nil {
			apperrors.WriteError(w, requestID, apperrors.ValidationError(err.Error()))
			return
		}
		updated, err = h.userRepo.UpdateName(r.Context(), userID, firstName, lastName)
		if err != nil {
			apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to update user").WithCause(err))
			return
		}
	}
	if email != "" {
		updated, err = h.userRepo.UpdateEmail(r.Context(), userID, email)
		if err != nil {
			if errors.Is(err, db.ErrEmailExists) {
				apperrors.WriteError(w, requestID, apperrors.EmailExists())
				return
			}
			apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to update email").WithCause(err))
			return
		}
	}

	h.invalidateDirectory(r.Context())
	apperrors.WriteJSON(w, requestID, http.StatusOK, auth.ViewOf(updated))
}

// AdminDeleteUser handles DELETE /api/admin/user/{userId}. The repository
// runs the full cascade in one transaction.
func (h *UserHandlers) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	userID, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid user ID"))
		return
	}

	if err := h.userRepo.DeleteCascade(r.Context(), userID); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			apperrors.WriteError(w, requestID, apperrors.UserNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to delete user").WithCause(err))
		return
	}

	h.invalidateDirectory(r.Context())
	if h.cache != nil {
		h.cache.InvalidatePrefix(r.Context(), cache.FeedKeyPrefix)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandlers) invalidateDirectory(ctx context.Context) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, cache.UserListKey)
	}
}

func validateName(firstName, lastName string) error {
	if len(firstName) < 2 {
		return errors.New("first name must be at least 2 characters")
	}
	if len(firstName) > 15 || len(lastName) > 15 {
		return errors.New("names cannot exceed 15 characters")
	}
	return nil
}
