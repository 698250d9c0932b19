package storage

import (
	"context"
	"sync"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// MemoryUserRepository keeps bot users in memory. It hands out copies so
// callers never share a *User across goroutines.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]entity.User
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]entity.User),
	}
}

// Get returns the user, creating it on first contact.
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.RLock()
	user, exists := r.users[userID]
	r.mu.RUnlock()
	if exists {
		return cloneUser(user), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if user, exists = r.users[userID]; !exists {
		user = *entity.NewUser(userID, chatID)
		r.users[userID] = user
	}
	return cloneUser(user), nil
}

// Save stores a copy of user.
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	r.users[user.ID] = *cloneUser(*user)
	r.mu.Unlock()
	return nil
}

// UpdateState changes the state of a known user. Unknown users are ignored.
func (r *MemoryUserRepository) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		user.SetState(state)
		r.users[userID] = user
	}
	return nil
}

func cloneUser(u entity.User) *entity.User {
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	return &u
}

var _ port.UserRepository = (*MemoryUserRepository)(nil)
