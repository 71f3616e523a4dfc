package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mystery-message-api/internal/domain"
	"github.com/mystery-message-api/internal/pkg/id"
	"github.com/mystery-message-api/internal/pkg/otp"
	"github.com/mystery-message-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the slice of the identity store the verification lifecycle needs.
type UserStore interface {
	CreatePending(ctx context.Context, u *domain.User) error
	ReplacePending(ctx context.Context, u *domain.User) error
	ListByUsername(ctx context.Context, username string) ([]domain.User, error)
	ListByEmail(ctx context.Context, email string) ([]domain.User, error)
	ClaimOwner(ctx context.Context, kind, value string) (string, error)
	ReserveAttempt(ctx context.Context, u *domain.User, limit int) error
	MarkVerified(ctx context.Context, u *domain.User) error
}

// Dispatcher delivers verification codes.
type Dispatcher interface {
	SendVerification(ctx context.Context, email, username, code string) error
}

// TokenSigner issues bearer tokens for a signed-in principal.
type TokenSigner interface {
	Sign(principal domain.Principal) (string, error)
}

// RegisterResult reports the pending record and whether the code reached the user.
// A failed dispatch leaves the record in place; NotifyErr wraps domain.ErrUpstream.
type RegisterResult struct {
	User      *domain.User
	EmailSent bool
	NotifyErr error
}

type SignInResult struct {
	Token string
	User  *domain.User
}

type Service interface {
	Register(ctx context.Context, req domain.SignUpRequest) (*RegisterResult, error)
	CheckUsernameAvailable(ctx context.Context, username string) (bool, error)
	VerifyCode(ctx context.Context, req domain.VerifyCodeRequest) error
	SignIn(ctx context.Context, req domain.SignInRequest) (*SignInResult, error)
}

type service struct {
	users    UserStore
	notifier Dispatcher
	signer   TokenSigner
	codeTTL  time.Duration
	hashCost int
	now      func() time.Time
}

func NewService(users UserStore, notifier Dispatcher, signer TokenSigner, codeTTL time.Duration) Service {
	return &service{
		users:    users,
		notifier: notifier,
		signer:   signer,
		codeTTL:  codeTTL,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, req domain.SignUpRequest) (*RegisterResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	taken, err := s.claimed(ctx, domain.ClaimUsername, req.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("username is already taken: %w", domain.ErrConflict)
	}
	taken, err = s.claimed(ctx, domain.ClaimEmail, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("user already exists with this email: %w", domain.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := otp.New()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	expiry := now.Add(s.codeTTL)

	existing, err := s.users.ListByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	var u *domain.User
	for i := range existing {
		if existing[i].IsVerified {
			return nil, fmt.Errorf("user already exists with this email: %w", domain.ErrConflict)
		}
		if u == nil {
			u = &existing[i]
		}
	}

	if u != nil {
		u.Username = req.Username
		u.PasswordHash = string(hash)
		u.VerifyCode = code
		u.VerifyCodeExpiry = &expiry
		u.VerifyAttempts = 0
		u.UpdatedAt = now
		if err := s.users.ReplacePending(ctx, u); err != nil {
			return nil, err
		}
	} else {
		u = &domain.User{
			UserID:             id.New(),
			Username:           req.Username,
			Email:              req.Email,
			PasswordHash:       string(hash),
			VerifyCode:         code,
			VerifyCodeExpiry:   &expiry,
			IsAcceptingMessage: true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.users.CreatePending(ctx, u); err != nil {
			return nil, err
		}
	}

	res := &RegisterResult{User: u, EmailSent: true}
	if err := s.notifier.SendVerification(ctx, u.Email, u.Username, code); err != nil {
		slog.Warn("verification code dispatch failed", "user_id", u.UserID, "err", err)
		res.EmailSent = false
		res.NotifyErr = fmt.Errorf("send verification code: %w: %w", domain.ErrUpstream, err)
	}
	return res, nil
}

func (s *service) CheckUsernameAvailable(ctx context.Context, username string) (bool, error) {
	q := domain.UsernameQuery{Username: strings.TrimSpace(username)}
	if err := validate.Struct(q); err != nil {
		return false, err
	}
	taken, err := s.claimed(ctx, domain.ClaimUsername, q.Username)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

func (s *service) VerifyCode(ctx context.Context, req domain.VerifyCodeRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(req); err != nil {
		return err
	}

	records, err := s.users.ListByUsername(ctx, req.Username)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var verified bool
	var waiting []domain.User
	for _, r := range records {
		if r.IsVerified {
			verified = true
		} else {
			waiting = append(waiting, r)
		}
	}
	if verified {
		if len(waiting) == 0 {
			return fmt.Errorf("account is already verified: %w", domain.ErrAlreadyVerified)
		}
		return fmt.Errorf("username is already taken: %w", domain.ErrConflict)
	}

	// every guess spends an attempt on each pending record under the username
	var live []domain.User
	for i := range waiting {
		err := s.users.ReserveAttempt(ctx, &waiting[i], domain.MaxVerifyAttempts)
		if errors.Is(err, domain.ErrExpired) {
			continue
		}
		if err != nil {
			return err
		}
		live = append(live, waiting[i])
	}
	if len(live) == 0 {
		return fmt.Errorf("too many incorrect attempts, please sign up again to get a new code: %w", domain.ErrExpired)
	}

	u := pickPending(live, req.Code)
	if u.CodeExpired(s.now()) {
		return fmt.Errorf("verification code has expired, please sign up again to get a new code: %w", domain.ErrExpired)
	}
	if !codesEqual(u.VerifyCode, req.Code) {
		return fmt.Errorf("incorrect verification code: %w", domain.ErrMismatch)
	}
	if err := s.users.MarkVerified(ctx, u); err != nil {
		return err
	}
	slog.Info("user verified", "user_id", u.UserID)
	return nil
}

func (s *service) SignIn(ctx context.Context, req domain.SignInRequest) (*SignInResult, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var (
		records []domain.User
		err     error
	)
	if strings.Contains(req.Identifier, "@") {
		records, err = s.users.ListByEmail(ctx, normalizeEmail(req.Identifier))
	} else {
		records, err = s.users.ListByUsername(ctx, req.Identifier)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	var u *domain.User
	for i := range records {
		if records[i].IsVerified {
			u = &records[i]
			break
		}
	}
	if u == nil {
		return nil, fmt.Errorf("verify your account before signing in: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}

	token, err := s.signer.Sign(domain.Principal{UserID: u.UserID, Username: u.Username, Email: u.Email})
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &SignInResult{Token: token, User: u}, nil
}

// claimed reports whether a verified user already holds value.
func (s *service) claimed(ctx context.Context, kind, value string) (bool, error) {
	_, err := s.users.ClaimOwner(ctx, kind, value)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// pickPending returns the record whose code matches, or else the most
// recently updated one so that expiry is reported against the latest code.
func pickPending(records []domain.User, code string) *domain.User {
	latest := &records[0]
	for i := range records {
		if codesEqual(records[i].VerifyCode, code) {
			return &records[i]
		}
		if records[i].UpdatedAt.After(latest.UpdatedAt) {
			latest = &records[i]
		}
	}
	return latest
}

func codesEqual(stored, given string) bool {
	return stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
