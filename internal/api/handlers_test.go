package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/opensocial/backend/internal/auth"
	"github.com/opensocial/backend/internal/db"
	apperrors "github.com/opensocial/backend/internal/errors"
)

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	user := &db.User{
		ID:        uuid.New(),
		Email:     "test@example.com",
		FirstName: "Test",
		LastName:  "User",
		Role:      db.RoleUser,
	}
	return req.WithContext(auth.ContextWithUser(req.Context(), user))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestEditProfile_RejectsUnknownField(t *testing.T) {
	h := &UserHandlers{}

	tests := []struct {
		name string
		body string
	}{
		{"email change attempt", `{"firstName":"New","email":"evil@example.com"}`},
		{"role escalation attempt", `{"role":"admin"}`},
		{"password slip", `{"firstName":"New","password":"hunter22"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodPatch, "/api/edit-profile", tt.body)
			w := httptest.NewRecorder()

			h.EditProfile(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			resp := decodeError(t, w)
			if resp.Error.Code != apperrors.CodeValidationError {
				t.Errorf("expected VALIDATION_ERROR, got %s", resp.Error.Code)
			}
		})
	}
}

func TestEditProfile_RejectsEmptyBody(t *testing.T) {
	h := &UserHandlers{}

	req := authedRequest(http.MethodPatch, "/api/edit-profile", `{}`)
	w := httptest.NewRecorder()

	h.EditProfile(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestEditProfile_RejectsBadNameLengths(t *testing.T) {
	h := &UserHandlers{}

	tests := []struct {
		name string
		body string
	}{
		{"first name too short", `{"firstName":"A"}`},
		{"first name too long", `{"firstName":"Abcdefghijklmnop"}`},
		{"last name too long", `{"lastName":"Abcdefghijklmnop"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodPatch, "/api/edit-profile", tt.body)
			w := httptest.NewRecorder()

			h.EditProfile(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestEditProfile_RequiresAuth(t *testing.T) {
	h := &UserHandlers{}

	req := httptest.NewRequest(http.MethodPatch, "/api/edit-profile", strings.NewReader(`{"firstName":"New"}`))
	w := httptest.NewRecorder()

	h.EditProfile(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestEditPassword_Validation(t *testing.T) {
	h := &UserHandlers{}

	tests := []struct {
		name string
		body string
	}{
		{"missing previous", `{"newPassword":"longenough"}`},
		{"missing new", `{"previousPassword":"longenough"}`},
		{"new too short", `{"previousPassword":"longenough","newPassword":"short"}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodPatch, "/api/edit-password", tt.body)
			w := httptest.NewRecorder()

			h.EditPassword(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestCreateComment_InvalidPostID(t *testing.T) {
	h := &CommentHandlers{}

	req := authedRequest(http.MethodPost, "/api/comment/not-a-uuid", `{"body":"hello"}`)
	req.SetPathValue("postId", "not-a-uuid")
	w := httptest.NewRecorder()

	h.CreateComment(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	h := &MessageHandlers{}

	tests := []struct {
		name string
		body string
	}{
		{"missing text", `{"receiver":"` + uuid.NewString() + `"}`},
		{"bad receiver id", `{"receiver":"nope","text":"hi"}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/api/message", tt.body)
			w := httptest.NewRecorder()

			h.SendMessage(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestSendMessage_RejectsSelfMessage(t *testing.T) {
	h := &MessageHandlers{}

	user := &db.User{ID: uuid.New(), Role: db.RoleUser}
	body := `{"receiver":"` + user.ID.String() + `","text":"hi me"}`
	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(body))
	req = req.WithContext(auth.ContextWithUser(req.Context(), user))
	w := httptest.NewRecorder()

	h.SendMessage(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestParseFeedPagination(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, 10},
		{"explicit", "?page=3&limit=25", 3, 25},
		{"zero page falls back", "?page=0", 1, 10},
		{"negative page falls back", "?page=-2", 1, 10},
		{"limit over cap falls back", "?limit=500", 1, 10},
		{"garbage ignored", "?page=abc&limit=xyz", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/posts"+tt.query, nil)
			page, limit := parseFeedPagination(r)
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Errorf("parseFeedPagination() = (%d, %d), want (%d, %d)",
					page, limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	if err := validateName("Jo", ""); err != nil {
		t.Errorf("two-character first name should pass: %v", err)
	}
	if err := validateName("J", ""); err == nil {
		t.Error("one-character first name should fail")
	}
	if err := validateName("Jordan", strings.Repeat("x", 16)); err == nil {
		t.Error("sixteen-character last name should fail")
	}
}

func TestServeMedia_RejectsTraversal(t *testing.T) {
	h := &MediaHandlers{}

	req := httptest.NewRequest(http.MethodGet, "/api/media/images/x", nil)
	req.SetPathValue("key", "../secrets")
	w := httptest.NewRecorder()

	h.ServeMedia(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
