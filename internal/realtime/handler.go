package realtime

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opensocial/backend/internal/auth"
	apperrors "github.com/opensocial/backend/internal/errors"
	"github.com/opensocial/backend/internal/logger"
)

// Handler upgrades authenticated HTTP requests to websocket connections.
type Handler struct {
	hub            *Hub
	authService    *auth.Service
	allowedOrigins map[string]bool
	log            *logger.Logger
}

func NewHandler(hub *Hub, authService *auth.Service, allowedOrigins []string) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub:            hub,
		authService:    authService,
		allowedOrigins: origins,
		log:            logger.Default().WithComponent("realtime"),
	}
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return h.allowedOrigins[origin]
		},
	}
}

// ServeWS authenticates the request and hands the connection to the hub.
// Browsers cannot set headers on websocket dials, so the access token is
// taken from the auth cookie, with a token query parameter as fallback for
// non-browser clients.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(auth.AccessCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	requestID := apperrors.GetRequestID(r.Context())
	if token == "" {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("authentication required"))
		return
	}

	user, err := h.authService.ResolveAccessToken(r.Context(), token)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.InvalidToken("invalid or expired token"))
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := NewClient(h.hub, conn, user.ID.String(), uuid.New().String())
	h.hub.Attach(client)

	h.log.Info(r.Context(), "websocket connected", map[string]interface{}{
		"user_id": client.userID,
		"conn_id": client.connID,
	})

	go client.WritePump()
	go client.ReadPump()
}
