package domain

import "time"

// MaxVerifyAttempts bounds how many codes may be tried against one pending record.
const MaxVerifyAttempts = 5

// User is both the identity record and the owner of an anonymous inbox.
// Verification fields are only set while IsVerified is false.
type User struct {
	UserID             string     `json:"id" dynamodbav:"user_id"`
	Username           string     `json:"username" dynamodbav:"username"`
	Email              string     `json:"email" dynamodbav:"email"`
	PasswordHash       string     `json:"-" dynamodbav:"password_hash"`
	VerifyCode         string     `json:"-" dynamodbav:"verify_code,omitempty"`
	VerifyCodeExpiry   *time.Time `json:"-" dynamodbav:"verify_code_expiry,omitempty"`
	VerifyAttempts     int        `json:"-" dynamodbav:"verify_attempts,omitempty"`
	IsVerified         bool       `json:"is_verified" dynamodbav:"is_verified"`
	IsAcceptingMessage bool       `json:"is_accepting_message" dynamodbav:"is_accepting_message"`
	CreatedAt          time.Time  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" dynamodbav:"updated_at"`
}

// CodeExpired reports whether the pending verification code is no longer usable at now.
// A missing expiry counts as expired.
func (u *User) CodeExpired(now time.Time) bool {
	return u.VerifyCodeExpiry == nil || now.After(*u.VerifyCodeExpiry)
}

// Principal is the authenticated identity attached to an owner-scoped request.
type Principal struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Owns reports whether the principal is allowed to act on userID.
// A nil principal owns nothing.
func (p *Principal) Owns(userID string) bool {
	return p != nil && p.UserID != "" && p.UserID == userID
}

type SignUpRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type VerifyCodeRequest struct {
	Username string `json:"username" validate:"required,username"`
	Code     string `json:"code" validate:"required,max=32"`
}

type SignInRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=72"`
}

type UsernameQuery struct {
	Username string `validate:"required,username"`
}

type AcceptMessagesRequest struct {
	AcceptMessages *bool `json:"accept_messages" validate:"required"`
}
