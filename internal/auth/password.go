package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Password length limits for local accounts. bcrypt ignores everything past
// 72 bytes, so longer passwords are rejected instead of silently truncated.
const (
	MinPasswordBytes = 8
	MaxPasswordBytes = 72
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on a
// modern server: negligible for a login, expensive for an offline attack.
const defaultCost = 12

// ErrInvalidPassword is returned by Verify when the password does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService hashes and verifies passwords for local accounts.
//
// The hash format is bcrypt's self-describing string
//
//	$2a$12$<22-char salt><31-char hash>
//
// so salt and cost live in the password_hash column alongside the digest.
type PasswordService struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost lets tests in other packages drop to
// bcrypt.MinCost (4) so each hash takes microseconds. Never use it in main.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes plaintext with bcrypt. Passwords over MaxPasswordBytes are rejected.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks plaintext against a stored bcrypt hash. A mismatch returns
// ErrInvalidPassword; a corrupt hash returns a wrapped bcrypt error.
//
// An empty hash (a GitHub-only account, or no such user) is still run
// through bcrypt against a throwaway hash, so "no password set" takes as long
// to answer as "wrong password".
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(p.dummyHash(), []byte(plaintext))
		return ErrInvalidPassword
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

func (p *PasswordService) dummyHash() []byte {
	p.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("snipshare-timing-pad"), p.cost)
		if err == nil {
			p.dummy = h
		}
	})
	return p.dummy
}
