package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opensocial/backend/internal/auth"
	"github.com/opensocial/backend/internal/db"
	apperrors "github.com/opensocial/backend/internal/errors"
	"github.com/opensocial/backend/internal/realtime"
)

type MessageHandlers struct {
	messageRepo *db.MessageRepository
	userRepo    *db.UserRepository
	hub         *realtime.Hub
}

func NewMessageHandlers(messageRepo *db.MessageRepository, userRepo *db.UserRepository, hub *realtime.Hub) *MessageHandlers {
	return &MessageHandlers{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		hub:         hub,
	}
}

type SendMessageRequest struct {
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

type MessageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

func messageView(m *db.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID.String(),
		SenderID:   m.SenderID.String(),
		ReceiverID: m.ReceiverID.String(),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

// SendMessage handles POST /api/message: the durable write. The realtime
// push to any open receiver connections rides along but its failure never
// affects the stored record.
func (h *MessageHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.Text == "" {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("message text is required"))
		return
	}

	receiverID, err := uuid.Parse(req.Receiver)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("invalid receiver ID"))
		return
	}
	if receiverID == user.ID {
		apperrors.WriteError(w, requestID, apperrors.ValidationError("cannot message yourself"))
		return
	}

	if _, err := h.userRepo.GetByID(r.Context(), receiverID); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			apperrors.WriteError(w, requestID, apperrors.UserNotFound())
			return
		}
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to verify receiver").WithCause(err))
		return
	}

	msg := &db.Message{
		ID:         uuid.New(),
		SenderID:   user.ID,
		ReceiverID: receiverID,
		Body:       req.Text,
	}

	if err := h.messageRepo.Create(r.Context(), msg); err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to store message").WithCause(err))
		return
	}

	if h.hub != nil {
		h.hub.DeliverMessage(&realtime.MessagePayload{
			Sender:   user.ID.String(),
			Receiver: receiverID.String(),
			Text:     req.Text,
		})
	}

	apperrors.WriteJSON(w, requestID, http.StatusCreated, messageView(msg))
}

// GetConversation handles GET /api/message/{userId}: every message between
// the caller and the named user, oldest first.
func (h *MessageHandlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	requestID := apperrors.GetRequestID(r.Context())

	user := auth.UserFromContext(r.Context())
	if user == nil {
		apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
		return
	}

	otherID, err := uuid.Parse(r.PathValue("userId"))
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.BadRequest("invalid user ID"))
		return
	}

	messages, err := h.messageRepo.ListConversation(r.Context(), user.ID, otherID)
	if err != nil {
		apperrors.WriteError(w, requestID, apperrors.DatabaseError("failed to load conversation").WithCause(err))
		return
	}

	views := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		views = append(views, messageView(&messages[i]))
	}

	apperrors.WriteJSON(w, requestID, http.StatusOK, views)
}
