package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrPostNotFound = errors.New("post not found")

type Post struct {
	ID           uuid.UUID
	AuthorID     uuid.UUID
	Title        string
	ImageKey     sql.NullString
	CommentCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PostWithAuthor joins the author's public fields onto a post for feed views.
type PostWithAuthor struct {
	Post
	AuthorFirstName string
	AuthorEmail     string
}

type PostRepository struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, post *Post) error {
	query := `
		INSERT INTO posts (id, author_id, title, image_key)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowContext(ctx, query,
		post.ID, post.AuthorID, post.Title, post.ImageKey,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
}

func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*PostWithAuthor, error) {
	query := `
		SELECT p.id, p.author_id, p.title, p.image_key, p.comment_count, p.created_at, p.updated_at,
			   u.first_name, u.email
		FROM posts p
		JOIN users u ON p.author_id = u.id
		WHERE p.id = $1
	`

	var p PostWithAuthor
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.AuthorID, &p.Title, &p.ImageKey, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt,
		&p.AuthorFirstName, &p.AuthorEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	return &p, nil
}

// ListPage returns one feed page, newest first, with the total row count
// folded into the same query via a window function.
func (r *PostRepository) ListPage(ctx context.Context, limit, offset int) ([]PostWithAuthor, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT p.id, p.author_id, p.title, p.image_key, p.comment_count, p.created_at, p.updated_at,
			   u.first_name, u.email,
			   COUNT(*) OVER() AS total_posts
		FROM posts p
		JOIN users u ON p.author_id = u.id
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []PostWithAuthor
	var total int
	for rows.Next() {
		var p PostWithAuthor
		err := rows.Scan(
			&p.ID, &p.AuthorID, &p.Title, &p.ImageKey, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt,
			&p.AuthorFirstName, &p.AuthorEmail, &total,
		)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}

	return posts, total, rows.Err()
}

func (r *PostRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]Post, error) {
	query := `
		SELECT id, author_id, title, image_key, comment_count, created_at, updated_at
		FROM posts
		WHERE author_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		err := rows.Scan(&p.ID, &p.AuthorID, &p.Title, &p.ImageKey, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	return posts, rows.Err()
}

func (r *PostRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*Post, error) {
	query := `
		UPDATE posts
		SET title = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, author_id, title, image_key, comment_count, created_at, updated_at
	`

	var p Post
	err := r.db.QueryRowContext(ctx, query, title, id).Scan(
		&p.ID, &p.AuthorID, &p.Title, &p.ImageKey, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	return &p, nil
}

// CountByImageKey reports how many posts reference a stored image. Keys are
// content hashes shared across posts, so the stored object may only be
// removed once this reaches zero.
func (r *PostRepository) CountByImageKey(ctx context.Context, key string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE image_key = $1`, key,
	).Scan(&n)
	return n, err
}

// DeleteCascade removes a post and its comments in one transaction. If the
// comment deletion fails nothing is applied.
func (r *PostRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = $1`, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireRow(result, ErrPostNotFound)
	})
}
