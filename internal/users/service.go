package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrCreate resolves an IdP subject to a local user, creating the row on
// first contact.
func (s *Service) GetOrCreate(ctx context.Context, subject, email, name string) (*User, error) {
	existing, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	user := &User{
		ID:        uuid.New(),
		Subject:   subject,
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetBySubject(ctx context.Context, subject string) (*User, error) {
	return s.repo.GetBySubject(ctx, subject)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}
