package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Provider is one member of a Chain. Zero Model, Temperature and MaxTokens
// fall back to the request's values; a zero Timeout means no per-provider
// deadline beyond the caller's context.
type Provider struct {
	Name        string
	Client      Client
	Model       string
	Timeout     time.Duration
	Temperature *float64
	MaxTokens   int64
}

// Result is a successful generation, tagged with where it came from.
type Result struct {
	Text     string
	Provider string
	// Attempts counts the providers tried, including the successful one.
	Attempts int
}

// Chain tries providers in order until one produces text.
type Chain struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewChain builds a chain over providers, in preference order.
func NewChain(logger zerolog.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		logger:    logger.With().Str("component", "llm_chain").Logger(),
	}
}

// Providers returns the provider names in the order they are tried.
func (c *Chain) Providers() []string {
	return lo.Map(c.providers, func(p Provider, _ int) string { return p.Name })
}

// Len returns the number of providers.
func (c *Chain) Len() int { return len(c.providers) }

// Generate sends req to each provider in turn. The first non-empty reply
// wins. When every provider fails the error wraps ErrExhausted together
// with each provider's error.
func (c *Chain) Generate(ctx context.Context, req *Request) (*Result, error) {
	if len(c.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrExhausted)
	}

	var errs []error
	for i, p := range c.providers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		text, err := c.try(ctx, p, req)
		if err == nil {
			c.logger.Debug().
				Str("provider", p.Name).
				Int("attempts", i+1).
				Msg("generation succeeded")
			return &Result{Text: text, Provider: p.Name, Attempts: i + 1}, nil
		}

		c.logger.Warn().
			Err(err).
			Str("provider", p.Name).
			Int("attempt", i+1).
			Msg("provider failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}

	return nil, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}

func (c *Chain) try(ctx context.Context, p Provider, req *Request) (string, error) {
	callCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	r := req.Clone()
	if p.Model != "" {
		r.Model = p.Model
	}
	if p.Temperature != nil {
		r.Temperature = p.Temperature
	}
	if p.MaxTokens > 0 {
		r.MaxTokens = p.MaxTokens
	}

	resp, err := p.Client.Synchronous(callCtx, r)
	if err != nil {
		return "", FromContext(callCtx, p.Name, err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", NewMalformedResponseError(p.Name + " returned no text")
	}
	return strings.TrimSpace(resp.Text), nil
}
