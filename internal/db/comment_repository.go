package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrCommentNotFound = errors.New("comment not found")

type Comment struct {
	ID        uuid.UUID
	PostID    uuid.UUID
	UserID    uuid.UUID
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CommentWithAuthor struct {
	Comment
	AuthorFirstName string
}

type CommentRepository struct {
	db *DB
}

func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts the comment and bumps the post's counter in one
// transaction; a failure on either side applies neither.
func (r *CommentRepository) Create(ctx context.Context, comment *Comment) error {
	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1)`, comment.PostID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrPostNotFound
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO comments (id, post_id, user_id, body)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at
		`, comment.ID, comment.PostID, comment.UserID, comment.Body,
		).Scan(&comment.CreatedAt, &comment.UpdatedAt)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET comment_count = comment_count + 1, updated_at = NOW() WHERE id = $1`,
			comment.PostID,
		)
		return err
	})
}

func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Comment, error) {
	query := `
		SELECT id, post_id, user_id, body, created_at, updated_at
		FROM comments
		WHERE id = $1
	`

	var c Comment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}

	return &c, nil
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]CommentWithAuthor, error) {
	query := `
		SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, c.updated_at, u.first_name
		FROM comments c
		JOIN users u ON c.user_id = u.id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []CommentWithAuthor
	for rows.Next() {
		var c CommentWithAuthor
		err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt, &c.AuthorFirstName)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

func (r *CommentRepository) Update(ctx context.Context, id uuid.UUID, body string) (*Comment, error) {
	query := `
		UPDATE comments
		SET body = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, post_id, user_id, body, created_at, updated_at
	`

	var c Comment
	err := r.db.QueryRowContext(ctx, query, body, id).Scan(
		&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}

	return &c, nil
}

// Delete removes the comment and decrements the post's counter atomically
// (the unlink-then-delete unit from the write path, reversed).
func (r *CommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		var postID uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT post_id FROM comments WHERE id = $1`, id,
		).Scan(&postID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrCommentNotFound
			}
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET comment_count = comment_count - 1, updated_at = NOW() WHERE id = $1`,
			postID,
		); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
		return err
	})
}
