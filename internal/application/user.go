package app

import (
	"context"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// UserService manages the dialogue state of bot users.
type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.update(ctx, userID, chatID, func(u *entity.User) { u.SetState(state) })
}

// BeginAssessment waits for an entrance photo.
func (s *UserService) BeginAssessment(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

// Cancel returns to the main menu and forgets the shared location.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.update(ctx, userID, chatID, func(u *entity.User) {
		u.SetState(entity.StateMainMenu)
		u.ForgetLocation()
	})
}

// RememberLocation stores the coordinates for the user's next photo.
func (s *UserService) RememberLocation(ctx context.Context, userID, chatID int64, lat, lon float64) (*entity.User, error) {
	return s.update(ctx, userID, chatID, func(u *entity.User) { u.RememberLocation(lat, lon) })
}

func (s *UserService) update(ctx context.Context, userID, chatID int64, fn func(*entity.User)) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	fn(user)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}
