// Package otp issues and checks the short-lived credentials used by the
// registration and recovery flows: 4-digit one-time codes for interactive
// email/phone challenges, and high-entropy single-use tokens for password
// reset links. The package is stateless; callers own storage and expiry
// checks.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// CodeLifetime is how long an issued code can be answered.
const CodeLifetime = 10 * time.Minute

// ResetTokenLifetime is how long a password reset link stays valid.
const ResetTokenLifetime = 1 * time.Hour

// Issue generates a 4-digit numeric code drawn uniformly from [1000, 9999],
// its bcrypt hash for storage, and the expiry timestamp. The plaintext is
// returned once and never persisted.
func Issue() (plain string, hash string, expiresAt time.Time, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to draw code: %w", err)
	}
	plain = fmt.Sprintf("%04d", 1000+n.Int64())

	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to hash code: %w", err)
	}
	return plain, string(h), time.Now().Add(CodeLifetime), nil
}

// Verify compares a presented code against a stored hash using bcrypt's own
// compare primitive.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NewResetToken generates a 32-byte random token for a password reset link
// and the sha256 hex digest stored in its place.
func NewResetToken() (plain string, hashHex string, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(b)
	return plain, HashResetToken(plain), nil
}

// HashResetToken returns the storage digest for a presented reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
