package ai

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig controls the backoff behaviour of RetryProvider.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      zerolog.Logger
}

// RetryProvider decorates a Provider with bounded exponential backoff and
// jitter. Only errors marked retryable are attempted again; everything else
// is returned immediately. Deduplication happens before the first call, so
// retries never cause a second paid invocation for an already-assessed pair.
type RetryProvider struct {
	next   Provider
	cfg    RetryConfig
	logger zerolog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewRetryProvider wraps the given provider with retry behaviour.
func NewRetryProvider(next Provider, cfg RetryConfig) *RetryProvider {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &RetryProvider{
		next:   next,
		cfg:    cfg,
		logger: logger.With().Str("component", "retry_provider").Logger(),
		sleep:  sleepContext,
	}
}

// Name returns the wrapped provider's name.
func (p *RetryProvider) Name() string {
	return p.next.Name()
}

// Complete invokes the wrapped provider, backing off between retryable
// failures. The last error is returned once attempts are exhausted.
func (p *RetryProvider) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		completion, err := p.next.Complete(ctx, req)
		if err == nil {
			return completion, nil
		}

		lastErr = err
		var providerErr *ProviderError
		if !errors.As(err, &providerErr) || !providerErr.Retryable {
			return Completion{}, err
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}

		delay := p.backoff(attempt)
		p.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying provider call")
		if err := p.sleep(ctx, delay); err != nil {
			return Completion{}, &ProviderError{Provider: p.next.Name(), Retryable: false, Err: err}
		}
	}

	return Completion{}, lastErr
}

func (p *RetryProvider) backoff(attempt int) time.Duration {
	delay := p.cfg.BaseDelay << (attempt - 1)
	if delay > p.cfg.MaxDelay {
		delay = p.cfg.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay/2 + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
