package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		t.Error("password comparison failed for correct password")
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte("wrongpassword")); err == nil {
		t.Error("password comparison should fail for wrong password")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, err := issuer.IssueAccess("user-1", "admin")
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}

	claims, err := issuer.VerifyAccess(token)
	if err != nil {
		t.Fatalf("failed to verify access token: %v", err)
	}

	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", claims.UserID)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, err := issuer.IssueRefresh("user-2")
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}

	claims, err := issuer.VerifyRefresh(token)
	if err != nil {
		t.Fatalf("failed to verify refresh token: %v", err)
	}

	if claims.UserID != "user-2" {
		t.Errorf("UserID = %q, want user-2", claims.UserID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a").IssueAccess("user-1", "user")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	if _, err := NewTokenIssuer("secret-b").VerifyAccess(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for forged signature, got %v", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.VerifyAccess(tok); err != ErrInvalidToken {
			t.Errorf("VerifyAccess(%q) error = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	claims := &AccessClaims{
		UserID: "user-1",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := issuer.VerifyAccess(signed); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsMissingUserID(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := issuer.VerifyAccess(signed); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for empty user id, got %v", err)
	}
}

func TestHashToken(t *testing.T) {
	hash1 := HashToken("token-1")
	hash1Again := HashToken("token-1")
	hash2 := HashToken("token-2")

	if hash1 != hash1Again {
		t.Error("same token should produce same hash")
	}
	if hash1 == hash2 {
		t.Error("different tokens should produce different hashes")
	}
	if len(hash1) != 64 {
		t.Errorf("hash should be 64 characters (SHA-256 hex), got %d", len(hash1))
	}
}

func TestValidateSignUpRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *SignUpRequest
		wantErr bool
	}{
		{
			name: "valid request",
			req: &SignUpRequest{
				Email:     "test@example.com",
				Password:  "password123",
				FirstName: "Test",
				LastName:  "User",
			},
			wantErr: false,
		},
		{
			name: "empty email",
			req: &SignUpRequest{
				Password:  "password123",
				FirstName: "Test",
			},
			wantErr: true,
		},
		{
			name: "invalid email format",
			req: &SignUpRequest{
				Email:     "notanemail",
				Password:  "password123",
				FirstName: "Test",
			},
			wantErr: true,
		},
		{
			name: "password too short",
			req: &SignUpRequest{
				Email:     "test@example.com",
				Password:  "short",
				FirstName: "Test",
			},
			wantErr: true,
		},
		{
			name: "first name too short",
			req: &SignUpRequest{
				Email:     "test@example.com",
				Password:  "password123",
				FirstName: "T",
			},
			wantErr: true,
		},
		{
			name: "last name too long",
			req: &SignUpRequest{
				Email:     "test@example.com",
				Password:  "password123",
				FirstName: "Test",
				LastName:  "averyveryverylongname",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSignUpRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSignUpRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
