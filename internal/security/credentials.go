// Package security holds password hashing, reset tokens and session tokens.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the work factor for stored password hashes.
	BcryptCost    = 12
	ResetTokenTTL = 10 * time.Minute
	resetTokenLen = 32
)

// CredentialError is a failure of the password check itself, as opposed to a
// simple mismatch. Login surfaces it as a 400 with its message.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return e.Err.Error()
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ResetToken is a freshly issued password reset token. Raw goes to the user
// and is never stored; Hash and Expires are persisted.
type ResetToken struct {
	Raw     string
	Hash    string
	Expires time.Time
}

// Credentials hashes and verifies secrets.
type Credentials struct {
	cost int
	now  func() time.Time
}

// NewCredentials returns a Credentials using bcrypt cost 12 and the wall clock.
func NewCredentials() *Credentials {
	return &Credentials{cost: BcryptCost, now: time.Now}
}

// WithClock replaces the time source.
func (c *Credentials) WithClock(now func() time.Time) *Credentials {
	c.now = now
	return c
}

// WithCost replaces the bcrypt cost. Tests use bcrypt.MinCost.
func (c *Credentials) WithCost(cost int) *Credentials {
	c.cost = cost
	return c
}

// HashPassword returns the bcrypt hash of plain.
func (c *Credentials) HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares plain against hash. A mismatch is (false, nil);
// any other failure is a *CredentialError.
func (c *Credentials) VerifyPassword(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, &CredentialError{Err: err}
	}
}

// IssueResetToken creates a single-use token valid for ResetTokenTTL.
func (c *Credentials) IssueResetToken() (ResetToken, error) {
	buf := make([]byte, resetTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, fmt.Errorf("generate reset token: %w", err)
	}
	raw := hex.EncodeToString(buf)
	return ResetToken{
		Raw:     raw,
		Hash:    HashResetToken(raw),
		Expires: c.now().Add(ResetTokenTTL),
	}, nil
}

// HashResetToken returns the stored form of a raw reset token.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
