package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrUserNotFound = errors.New("user not found")
var ErrEmailExists = errors.New("email already exists")

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
	// PasswordHash is NULL for accounts created through Google login.
	PasswordHash sql.NullString
	Role         string
	// Single active refresh token, stored hashed. Rotation overwrites both
	// columns in place; a token is usable only while the hash matches AND
	// the expiry is in the future.
	RefreshTokenHash      sql.NullString
	RefreshTokenExpiresAt sql.NullTime
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, password_hash, role,
		refresh_token_hash, refresh_token_expires_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash,
		&user.Role, &user.RefreshTokenHash, &user.RefreshTokenExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query := `
		INSERT INTO users (id, email, first_name, last_name, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.Role, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}

	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// List returns every user, newest first. Password and token columns are
// never selected here; the result feeds the public user directory.
func (r *UserRepository) List(ctx context.Context) ([]User, error) {
	query := `
		SELECT id, email, first_name, last_name, role, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// SearchByName returns directory entries whose normalized name contains the
// normalized query (case and accent insensitive).
func (r *UserRepository) SearchByName(ctx context.Context, query string) ([]User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	needle := NormalizeName(query)
	if needle == "" {
		return users, nil
	}

	var matched []User
	for _, u := range users {
		if strings.Contains(NormalizeName(u.FirstName+" "+u.LastName), needle) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

// UpdateName applies a profile edit. Callers enforce the field whitelist
// before reaching this point.
func (r *UserRepository) UpdateName(ctx context.Context, id uuid.UUID, firstName, lastName string) (*User, error) {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, query, firstName, lastName, id))
}

// UpdateEmail is the admin edit path; it may also rename.
func (r *UserRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) (*User, error) {
	query := `
		UPDATE users
		SET email = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email)), id))
	if err != nil && isUniqueViolation(err) {
		return nil, ErrEmailExists
	}
	return user, err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrUserNotFound)
}

// SetRefreshToken rotates the stored refresh token: the previous value
// becomes unusable the moment this commits.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET refresh_token_hash = $1, refresh_token_expires_at = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, tokenHash, expiresAt, id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrUserNotFound)
}

// ClearRefreshToken revokes the active refresh token (logout).
func (r *UserRepository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// DeleteCascade removes a user and everything that references them, as one
// atomic unit: comments on their posts, their posts, comments they authored
// elsewhere, messages they sent or received, then the user row. Dependent
// post ids are computed first so no step observes partial state.
func (r *UserRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM posts WHERE author_id = $1`, id)
		if err != nil {
			return err
		}
		var postIDs []uuid.UUID
		for rows.Next() {
			var postID uuid.UUID
			if err := rows.Scan(&postID); err != nil {
				rows.Close()
				return err
			}
			postIDs = append(postIDs, postID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if len(postIDs) > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM comments WHERE post_id = ANY($1)`, pq.Array(postIDs),
			); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM posts WHERE author_id = $1`, id,
			); err != nil {
				return err
			}
		}

		// Comments this user left on other people's posts; keep the
		// counters on those posts honest.
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts SET comment_count = comment_count - sub.n
			FROM (SELECT post_id, COUNT(*) AS n FROM comments WHERE user_id = $1 GROUP BY post_id) AS sub
			WHERE posts.id = sub.post_id
		`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE user_id = $1`, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM messages WHERE sender_id = $1 OR receiver_id = $1`, id,
		); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})
}

func requireRow(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return missing
	}
	return nil
}
