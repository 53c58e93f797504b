package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// HashCost is the bcrypt work factor applied to every stored password.
const HashCost = 10

var (
	ErrEmptyPassword = errors.New("password must not be empty")
	ErrHashing       = errors.New("password hashing failed")
)

// Hasher hashes and verifies passwords with bcrypt. Concurrent hashing is
// bounded so a burst of logins cannot occupy every CPU.
type Hasher struct {
	cost  int
	slots *semaphore.Weighted
}

func NewHasher() *Hasher {
	return NewHasherWithLimit(runtime.GOMAXPROCS(0))
}

// NewHasherWithLimit allows at most limit hashes to run at once.
func NewHasherWithLimit(limit int) *Hasher {
	if limit < 1 {
		limit = 1
	}
	return &Hasher{cost: HashCost, slots: semaphore.NewWeighted(int64(limit))}
}

// Hash returns a salted bcrypt hash of plaintext. Two calls with the same
// input produce different hashes.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A wrong password or a
// malformed hash is simply false; the error is only set when ctx ends while
// waiting for a hashing slot.
func (h *Hasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.slots.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil, nil
}
