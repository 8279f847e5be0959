package auth

import (
	"context"
	"time"
)

// JWTService defines operations for issuing and checking bearer tokens.
// The API only validates tokens; GenerateToken exists for operators and tests.
type JWTService interface {
	// GenerateToken creates a signed JWT for subject that expires after lifetime.
	GenerateToken(ctx context.Context, subject string, lifetime time.Duration) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken on failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated claims of a bearer token.
type Claims struct {
	// Subject identifies the API client the token was issued for.
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
