package suggestion

import (
	"context"
	"log/slog"
)

// Source produces conversation starters. Implementations may fail; the
// service never surfaces that failure to callers.
type Source interface {
	Generate(ctx context.Context) ([]string, error)
}

// Fallback is served whenever the source is missing or fails.
var Fallback = []string{
	"What's a hobby you've recently started?",
	"If you could have dinner with any historical figure, who would it be?",
	"What's a simple thing that makes you happy?",
}

type Service interface {
	Suggest(ctx context.Context) []string
}

type service struct {
	source Source
}

func NewService(source Source) Service {
	return &service{source: source}
}

func (s *service) Suggest(ctx context.Context) []string {
	if s.source == nil {
		return fallback()
	}
	got, err := s.source.Generate(ctx)
	if err != nil {
		slog.Warn("suggestion source failed, serving defaults", "err", err)
		return fallback()
	}
	if len(got) == 0 {
		return fallback()
	}
	return got
}

func fallback() []string {
	return append([]string(nil), Fallback...)
}
