// Package assist holds DeBot's single-shot helpers: the conventional-commit
// formatter behind /commiti and the ELLAB error analyser.
package assist

import (
	"context"
	"errors"
	"time"

	"github.com/aschepis/backscratcher/debot/llm"
	"github.com/rs/zerolog"
)

var (
	// ErrEmptyInput is returned when there is nothing to work on.
	ErrEmptyInput = errors.New("assist: empty input")
	// ErrTimedOut is returned when generation ran out of time.
	ErrTimedOut = errors.New("assist: request timed out")
)

// Generator produces text from a request. *llm.Chain implements it.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Result, error)
}

// Option configures a helper.
type Option func(*settings)

type settings struct {
	timeout time.Duration
}

// WithTimeout bounds how long a single call may take.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func apply(timeout time.Duration, opts []Option) settings {
	s := settings{timeout: timeout}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func generate(ctx context.Context, gen Generator, timeout time.Duration, req *llm.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := gen.Generate(ctx, req)
	if err != nil {
		if llm.IsTimeoutError(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Join(ErrTimedOut, err)
		}
		return "", err
	}
	return result.Text, nil
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
