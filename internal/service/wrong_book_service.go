package service

import (
	"context"
	"fmt"

	"github.com/zwlabs/examtrack-backend/internal/model"
	"github.com/zwlabs/examtrack-backend/internal/repository"
)

// WrongBookService serves per-user wrong-answer history. Writes happen in the
// wrong-book worker; this service is read-only.
type WrongBookService struct {
	repo *repository.WrongBookRepository
}

// NewWrongBookService creates a new WrongBookService.
func NewWrongBookService(repo *repository.WrongBookRepository) *WrongBookService {
	return &WrongBookService{repo: repo}
}

// ListByUser returns a user's wrong-book entries, most recent miss first.
func (s *WrongBookService) ListByUser(ctx context.Context, userID int64) ([]model.WrongBookEntry, error) {
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wrong book: %w", err)
	}
	return entries, nil
}
