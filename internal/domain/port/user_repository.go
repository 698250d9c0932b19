package port

import (
	"context"

	"ablemap/internal/domain/entity"
)

// UserRepository stores bot users.
type UserRepository interface {
	// Get returns the user, creating it on first contact.
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save stores the user.
	Save(ctx context.Context, user *entity.User) error

	// UpdateState changes the state of a known user.
	UpdateState(ctx context.Context, userID int64, state entity.UserState) error
}
