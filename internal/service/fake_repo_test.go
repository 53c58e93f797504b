package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vaughan-dsouza/usersapi/internal/models"
	"github.com/vaughan-dsouza/usersapi/internal/store"
)

// memUsers wraps the in-memory repository with a few hooks for tests.
type memUsers struct {
	*store.MemoryUsers

	findByIDCalls atomic.Int32
	// when set, FindByID blocks until it is closed
	gate chan struct{}

	lastLoginErr error
}

func newMemUsers() *memUsers {
	return &memUsers{MemoryUsers: store.NewMemoryUsers()}
}

func (m *memUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	m.findByIDCalls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	return m.MemoryUsers.FindByID(ctx, id)
}

func (m *memUsers) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	if m.lastLoginErr != nil {
		return m.lastLoginErr
	}
	return m.MemoryUsers.UpdateLastLogin(ctx, id, at)
}

func (m *memUsers) passwordOf(email string) string {
	u, err := m.FindByEmail(context.Background(), email)
	if err != nil {
		return ""
	}
	return u.Password
}
