package customers

import (
	"context"
	"errors"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, c Customer) (*Customer, error) {
	if c.Name == "" {
		return nil, errors.New("customers: name required")
	}
	if c.OpeningBalance < 0 {
		return nil, errors.New("customers: opening balance must be >= 0")
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// SetOpeningBalance adjusts the standing balance directly. Unlike sale
// payments this leaves no payment row behind.
func (s *Service) SetOpeningBalance(ctx context.Context, id int64, value float64) error {
	if value < 0 {
		return errors.New("customers: opening balance must be >= 0")
	}
	return s.repo.SetOpeningBalance(ctx, id, value)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Customer, error) {
	return s.repo.List(ctx, limit, offset)
}
