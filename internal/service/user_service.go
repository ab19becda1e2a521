package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

var ErrUserNotFound = errors.New("user doesn't exist")

type UserService interface {
	GetUserInfo(ctx context.Context, id int64) (*models.User, error)
	RemoveUser(ctx context.Context, userID int64) error
}

type userService struct {
	u repository.UserRepository
}

func NewUserService(u repository.UserRepository) UserService {
	return &userService{
		u: u,
	}
}

func (s *userService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	if id == 0 {
		slog.Info(ErrInvalidUser.Error())
		return nil, ErrInvalidUser
	}

	user, err := s.u.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info(ErrUserNotFound.Error())
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user info: %w", err)
	}

	return user, nil
}

// RemoveUser deletes the account with everything it owns. Queued deliveries of
// its publications turn stale and are dropped by the worker.
func (s *userService) RemoveUser(ctx context.Context, userID int64) error {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return ErrInvalidUser
	}

	if err := s.u.Remove(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
