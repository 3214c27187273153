package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is immutable once created; there is no update path.
type Message struct {
	ID         uuid.UUID
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Body       string
	CreatedAt  time.Time
}

type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	return r.db.QueryRowContext(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Body,
	).Scan(&msg.CreatedAt)
}

// ListConversation returns every message between the unordered pair (a, b),
// oldest first.
func (r *MessageRepository) ListConversation(ctx context.Context, a, b uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, body, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
