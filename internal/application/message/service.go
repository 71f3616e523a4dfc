package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mystery-message-api/internal/domain"
	"github.com/mystery-message-api/internal/pkg/id"
	"github.com/mystery-message-api/internal/pkg/validate"
)

// Owners resolves a verified username to its user id.
type Owners interface {
	ClaimOwner(ctx context.Context, kind, value string) (string, error)
}

// Inbox stores the messages of each user. AppendMessage must fail with
// domain.ErrRejected when the owner's gate is closed at append time.
type Inbox interface {
	AppendMessage(ctx context.Context, userID string, msg domain.Message) error
	ListMessages(ctx context.Context, userID string) ([]domain.Message, error)
	RemoveMessage(ctx context.Context, userID, messageID string) error
}

type Service interface {
	SendMessage(ctx context.Context, req domain.SendMessageRequest) error
	ListMessages(ctx context.Context, principal *domain.Principal, userID string) ([]domain.Message, error)
	DeleteMessage(ctx context.Context, principal *domain.Principal, userID, messageID string) error
}

type service struct {
	owners Owners
	inbox  Inbox
	now    func() time.Time
}

func NewService(owners Owners, inbox Inbox) Service {
	return &service{owners: owners, inbox: inbox, now: time.Now}
}

// SendMessage appends an anonymous message to a verified user's inbox. The
// acceptance gate is evaluated by the store inside the append itself.
func (s *service) SendMessage(ctx context.Context, req domain.SendMessageRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Content = strings.TrimSpace(req.Content)
	if err := validate.Struct(req); err != nil {
		return err
	}

	userID, err := s.owners.ClaimOwner(ctx, domain.ClaimUsername, req.Username)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return err
	}

	return s.inbox.AppendMessage(ctx, userID, domain.Message{
		MessageID: id.New(),
		Content:   req.Content,
		CreatedAt: s.now().UTC(),
	})
}

func (s *service) ListMessages(ctx context.Context, principal *domain.Principal, userID string) ([]domain.Message, error) {
	if !principal.Owns(userID) {
		return nil, fmt.Errorf("not authenticated: %w", domain.ErrUnauthorized)
	}
	msgs, err := s.inbox.ListMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(msgs)
	return msgs, nil
}

func (s *service) DeleteMessage(ctx context.Context, principal *domain.Principal, userID, messageID string) error {
	if !principal.Owns(userID) {
		return fmt.Errorf("not authenticated: %w", domain.ErrUnauthorized)
	}
	if strings.TrimSpace(messageID) == "" {
		return fmt.Errorf("message id is required: %w", domain.ErrValidation)
	}
	return s.inbox.RemoveMessage(ctx, userID, messageID)
}
