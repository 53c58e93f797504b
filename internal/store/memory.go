package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vaughan-dsouza/usersapi/internal/models"
)

// MemoryUsers is a UserRepository kept in process memory. It backs local
// runs started with DATABASE_URL=memory:// and the HTTP tests.
type MemoryUsers struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]models.User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[int64]models.User)}
}

func (s *MemoryUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Password = ""
	return &u, nil
}

func (s *MemoryUsers) Create(ctx context.Context, u *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.users {
		if e.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryUsers) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLogin = &at
	s.users[id] = u
	return nil
}

func (s *MemoryUsers) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []models.User{}
	for _, u := range s.users {
		if (f.Name == "" || u.Name == f.Name) &&
			(f.Email == "" || u.Email == f.Email) &&
			(f.Role == "" || u.Role == f.Role) {
			u.Password = ""
			result = append(result, u)
		}
	}
	// newest first, like the SQL ORDER BY created_at DESC
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (s *MemoryUsers) Update(ctx context.Context, id int64, upd UserUpdate) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Email != nil {
		for _, e := range s.users {
			if e.ID != id && e.Email == *upd.Email {
				return nil, ErrDuplicateEmail
			}
		}
		u.Email = *upd.Email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		u.Password = *upd.PasswordHash
	}
	u.UpdatedAt = time.Now()
	s.users[id] = u
	u.Password = ""
	return &u, nil
}

func (s *MemoryUsers) UpdateRole(ctx context.Context, id int64, role models.Role) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	s.users[id] = u
	u.Password = ""
	return &u, nil
}

func (s *MemoryUsers) Delete(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	return true, nil
}
