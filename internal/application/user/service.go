package user

import (
	"context"
	"fmt"

	"github.com/mystery-message-api/internal/domain"
)

// UserStore is the slice of the identity store the acceptance gate needs.
type UserStore interface {
	GetAccepting(ctx context.Context, userID string) (bool, error)
	SetAccepting(ctx context.Context, userID string, accepting bool) error
}

// Service owns the acceptance gate of each inbox.
type Service interface {
	GetAcceptanceStatus(ctx context.Context, principal *domain.Principal, userID string) (bool, error)
	SetAcceptanceStatus(ctx context.Context, principal *domain.Principal, userID string, accepting bool) (bool, error)
}

type service struct {
	users UserStore
}

func NewService(users UserStore) Service {
	return &service{users: users}
}

func (s *service) GetAcceptanceStatus(ctx context.Context, principal *domain.Principal, userID string) (bool, error) {
	if !principal.Owns(userID) {
		return false, fmt.Errorf("not authenticated: %w", domain.ErrUnauthorized)
	}
	return s.users.GetAccepting(ctx, userID)
}

func (s *service) SetAcceptanceStatus(ctx context.Context, principal *domain.Principal, userID string, accepting bool) (bool, error) {
	if !principal.Owns(userID) {
		return false, fmt.Errorf("not authenticated: %w", domain.ErrUnauthorized)
	}
	if err := s.users.SetAccepting(ctx, userID, accepting); err != nil {
		return false, err
	}
	return accepting, nil
}
