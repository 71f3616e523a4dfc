package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mystery-message-api/internal/config"
	"github.com/mystery-message-api/internal/infrastructure/dynamo"
	"github.com/mystery-message-api/internal/infrastructure/gemini"
	jwtinfra "github.com/mystery-message-api/internal/infrastructure/jwt"
	"github.com/mystery-message-api/internal/infrastructure/notify"
	"github.com/mystery-message-api/internal/infrastructure/smtp"
	"github.com/mystery-message-api/internal/infrastructure/sns"
	transporthttp "github.com/mystery-message-api/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	setupLogger(cfg)
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dynamodb client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	notifier, err := newDispatcher(ctx, cfg)
	if err != nil {
		return err
	}

	deps := &transporthttp.Deps{
		Users:       dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.UserClaims),
		Messages:    dynamo.NewMessageRepo(dynamoClient, cfg.DynamoTables.Messages, cfg.DynamoTables.Users),
		Notifier:    notifier,
		Suggestions: gemini.NewClient(cfg),
		JWTProvider: jwtProvider,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "notify_driver", cfg.NotifyDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// newDispatcher picks how verification codes leave the system.
func newDispatcher(ctx context.Context, cfg *config.Config) (notify.Dispatcher, error) {
	switch cfg.NotifyDriver {
	case "sns":
		publisher, err := sns.NewPublisher(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("sns publisher: %w", err)
		}
		return notify.NewSNSDispatcher(publisher), nil
	case "smtp":
		return notify.NewEmailDispatcher(smtp.NewMailer(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_DRIVER %q (want smtp or sns)", cfg.NotifyDriver)
	}
}
