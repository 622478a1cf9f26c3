package agent

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spachava753/gai"
)

// RetryMiddleware retries transient provider failures with
// exponential backoff. Context cancellation stops retrying
// immediately.
type RetryMiddleware struct {
	gai.GeneratorWrapper
	maxTries   uint
	maxElapsed time.Duration
}

// NewRetryMiddleware wraps g with retry behavior.
func NewRetryMiddleware(g gai.Generator, maxTries int, maxElapsed time.Duration) *RetryMiddleware {
	if maxTries < 1 {
		maxTries = 1
	}
	return &RetryMiddleware{
		GeneratorWrapper: gai.GeneratorWrapper{Inner: g},
		maxTries:         uint(maxTries),
		maxElapsed:       maxElapsed,
	}
}

// WithRetry returns a WrapperFunc for use with gai.Wrap.
func WithRetry(maxTries int, maxElapsed time.Duration) gai.WrapperFunc {
	return func(g gai.Generator) gai.Generator {
		return NewRetryMiddleware(g, maxTries, maxElapsed)
	}
}

// Generate implements the gai.Generator interface.
func (m *RetryMiddleware) Generate(ctx context.Context, dialog gai.Dialog, opts *gai.GenOpts) (gai.Response, error) {
	operation := func() (gai.Response, error) {
		resp, err := m.GeneratorWrapper.Generate(ctx, dialog, opts)
		if err != nil && ctx.Err() != nil {
			return resp, backoff.Permanent(err)
		}
		return resp, err
	}
	return backoff.Retry(ctx, operation,
		backoff.WithMaxTries(m.maxTries),
		backoff.WithMaxElapsedTime(m.maxElapsed),
	)
}
