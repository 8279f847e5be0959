package auth

import "golang.org/x/crypto/bcrypt"

// APIKeyVerifier checks a presented API key.
type APIKeyVerifier interface {
	// Verify returns nil when key matches, ErrInvalidAPIKey otherwise.
	Verify(key string) error
}

// BcryptVerifier compares API keys against a bcrypt hash.
type BcryptVerifier struct {
	hash []byte
}

// NewBcryptVerifier creates a verifier for hash. The hash is checked for a
// valid bcrypt cost up front so a malformed config fails at startup.
func NewBcryptVerifier(hash string) (*BcryptVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &BcryptVerifier{hash: []byte(hash)}, nil
}

// Verify implements APIKeyVerifier.
func (v *BcryptVerifier) Verify(key string) error {
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// HashAPIKey returns the bcrypt hash of key at the given cost.
func HashAPIKey(key string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
