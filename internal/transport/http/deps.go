package http

import (
	"github.com/mystery-message-api/internal/application/auth"
	"github.com/mystery-message-api/internal/application/message"
	"github.com/mystery-message-api/internal/application/suggestion"
	"github.com/mystery-message-api/internal/application/user"
	"github.com/mystery-message-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/mystery-message-api/internal/infrastructure/jwt"
	"github.com/mystery-message-api/internal/infrastructure/notify"
)

// IdentityStore is everything the services need from the user store.
// *dynamo.UserRepo satisfies it.
type IdentityStore interface {
	auth.UserStore
	user.UserStore
	message.Owners
}

var (
	_ IdentityStore = (*dynamo.UserRepo)(nil)
	_ message.Inbox = (*dynamo.MessageRepo)(nil)
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Users       IdentityStore
	Messages    message.Inbox
	Notifier    notify.Dispatcher
	Suggestions suggestion.Source
	JWTProvider *jwtinfra.Provider
}
