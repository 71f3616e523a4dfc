package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mystery-message-api/internal/application/auth"
	"github.com/mystery-message-api/internal/application/message"
	"github.com/mystery-message-api/internal/application/suggestion"
	"github.com/mystery-message-api/internal/application/user"
	"github.com/mystery-message-api/internal/config"
	"github.com/mystery-message-api/internal/transport/http/handler"
	appmiddleware "github.com/mystery-message-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10 on public writes.
	publicRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10, appmiddleware.ParseTrustedProxies(cfg.TrustedProxies)...)

	authSvc := auth.NewService(deps.Users, deps.Notifier, deps.JWTProvider, cfg.VerifyCodeTTL)
	userSvc := user.NewService(deps.Users)
	messageSvc := message.NewService(deps.Users, deps.Messages)
	suggestionSvc := suggestion.NewService(deps.Suggestions)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)
	messageH := handler.NewMessageHandler(messageSvc)
	suggestionH := handler.NewSuggestionHandler(suggestionSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes ────────────────────────────────────────────────────
		r.Get("/health-check", healthH.Check)
		r.Get("/check-username-unique", authH.CheckUsername)
		r.With(publicRL.Limit).Post("/sign-up", authH.SignUp)
		r.With(publicRL.Limit).Post("/verify-code", authH.VerifyCode)
		r.With(publicRL.Limit).Post("/sign-in", authH.SignIn)
		r.With(publicRL.Limit).Post("/u/{username}/messages", messageH.Send)
		r.With(publicRL.Limit).Post("/suggest-messages", suggestionH.Suggest)

		// ── Owner routes ─────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users/{id}/accept-messages", userH.GetAcceptMessages)
			r.Post("/users/{id}/accept-messages", userH.SetAcceptMessages)
			r.Get("/users/{id}/messages", messageH.List)
			r.Delete("/users/{id}/messages/{messageID}", messageH.Delete)
		})
	})

	return r
}
