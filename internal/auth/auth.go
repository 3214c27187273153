package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/opensocial/backend/internal/db"
)

const BcryptCost = 12

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo?alt=json"

// TokenPair is what every successful authentication hands back; handlers
// turn it into the two cookies.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserStore is the persistence surface the service depends on.
// *db.UserRepository is the production implementation.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetRefreshToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	userRepo UserStore
	tokens   *TokenIssuer
	google   *oauth2.Config
}

func NewService(userRepo UserStore, tokens *TokenIssuer, google *oauth2.Config) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		google:   google,
	}
}

func (s *Service) SignUp(ctx context.Context, email, password, firstName, lastName string) (*db.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &db.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: sql.NullString{String: string(passwordHash), Valid: true},
		Role:         db.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies the password and issues a fresh token pair, persisting the
// rotated refresh token on the user row.
func (s *Service) Login(ctx context.Context, email, password string) (*db.User, *TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !user.PasswordHash.Valid {
		// Google-created account with no password set.
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// Refresh implements rotation-on-use. The presented token must carry a
// valid signature, belong to an existing user, match the single stored
// value exactly, and be inside the stored expiry window. On success both
// tokens are reissued and the stored value is overwritten, which
// invalidates the just-used token for any replay.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*db.User, *TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	if !user.RefreshTokenHash.Valid || user.RefreshTokenHash.String != HashToken(refreshToken) {
		// Stolen, already-rotated, or revoked token.
		return nil, nil, ErrInvalidToken
	}

	if !user.RefreshTokenExpiresAt.Valid || time.Now().After(user.RefreshTokenExpiresAt.Time) {
		return nil, nil, ErrTokenExpired
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// Logout revokes the stored refresh token; the access token simply runs out
// its remaining lifetime.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.userRepo.ClearRefreshToken(ctx, userID)
}

// ResolveAccessToken verifies an access token and loads the full identity
// record behind it.
func (s *Service) ResolveAccessToken(ctx context.Context, tokenString string) (*db.User, error) {
	claims, err := s.tokens.VerifyAccess(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return user, nil
}

// ChangePassword requires the previous password to match and the new one to
// differ from it.
func (s *Service) ChangePassword(ctx context.Context, user *db.User, prevPassword, newPassword string) error {
	if prevPassword == newPassword {
		return errors.New("new password must differ from the previous one")
	}

	if !user.PasswordHash.Valid {
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(prevPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return err
	}

	return s.userRepo.UpdatePassword(ctx, user.ID, string(hash))
}

type googleUser struct {
	Email     string `json:"email"`
	GivenName string `json:"given_name"`
	Family    string `json:"family_name"`
	Name      string `json:"name"`
}

// GoogleLogin exchanges the authorization code, fetches the Google profile
// and signs the matching user in, creating a passwordless account on first
// contact.
func (s *Service) GoogleLogin(ctx context.Context, code string) (*db.User, *TokenPair, error) {
	if s.google == nil || s.google.ClientID == "" {
		return nil, nil, errors.New("google login is not configured")
	}

	googleToken, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("code exchange failed: %w", err)
	}

	info, err := fetchGoogleUser(ctx, s.google, googleToken)
	if err != nil {
		return nil, nil, err
	}
	if info.Email == "" {
		return nil, nil, errors.New("google profile carried no email")
	}

	user, err := s.userRepo.GetByEmail(ctx, info.Email)
	if errors.Is(err, db.ErrUserNotFound) {
		firstName, lastName := splitName(info)
		now := time.Now()
		user = &db.User{
			ID:        uuid.New(),
			Email:     info.Email,
			FirstName: firstName,
			LastName:  lastName,
			Role:      db.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, nil, err
		}
	} else if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

func fetchGoogleUser(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*googleUser, error) {
	resp, err := cfg.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request returned status %d", resp.StatusCode)
	}

	var info googleUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}

	return &info, nil
}

func splitName(info *googleUser) (string, string) {
	if info.GivenName != "" {
		return info.GivenName, info.Family
	}

	parts := strings.Fields(info.Name)
	switch len(parts) {
	case 0:
		return "User", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// issuePair mints both tokens and rotates the persisted refresh token.
func (s *Service) issuePair(ctx context.Context, user *db.User) (*TokenPair, error) {
	accessToken, err := s.tokens.IssueAccess(user.ID.String(), user.Role)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokens.IssueRefresh(user.ID.String())
	if err != nil {
		return nil, err
	}

	expiry := time.Now().Add(RefreshTokenExpiry)
	if err := s.userRepo.SetRefreshToken(ctx, user.ID, HashToken(refreshToken), expiry); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
