package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service provides directory operations.
type Service struct {
	repo Repository
}

// NewService builds the customer directory service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new customer.
func (s *Service) Create(ctx context.Context, input CreateCustomerInput) (*Customer, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.New("customers: name is required")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, errors.New("customers: phone is required")
	}
	id, err := s.repo.Create(ctx, Customer{
		Name:    strings.TrimSpace(input.Name),
		Phone:   strings.TrimSpace(input.Phone),
		Email:   strings.TrimSpace(input.Email),
		Address: strings.TrimSpace(input.Address),
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get loads one customer.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// GetByPhone looks up a customer by phone number.
func (s *Service) GetByPhone(ctx context.Context, phone string) (*Customer, error) {
	return s.repo.GetByPhone(ctx, strings.TrimSpace(phone))
}

// List returns customers with total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	return s.repo.List(ctx, limit, offset)
}
