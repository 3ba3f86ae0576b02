package service

import (
	"context"
	"fmt"

	"github.com/zwlabs/examtrack-backend/internal/repository"
)

// UserService exposes the identity lookups the handler layer needs. User
// management itself lives elsewhere; this service only answers existence.
type UserService struct {
	repo *repository.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Exists reports whether the user ID is known.
func (s *UserService) Exists(ctx context.Context, userID int64) (bool, error) {
	ok, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return ok, nil
}
