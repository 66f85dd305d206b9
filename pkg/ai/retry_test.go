package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	results []error
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	err := p.results[p.calls]
	p.calls++
	if err != nil {
		return Completion{}, err
	}
	return Completion{Content: "ok", Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestRetryProviderRecoversFromRetryableError(t *testing.T) {
	next := &scriptedProvider{results: []error{
		&ProviderError{Provider: "scripted", Retryable: true, Err: errors.New("rate limited")},
		nil,
	}}
	provider := NewRetryProvider(next, RetryConfig{MaxAttempts: 3})
	provider.sleep = noSleep

	completion, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "grade"})
	require.NoError(t, err)
	require.Equal(t, "ok", completion.Content)
	require.Equal(t, 2, next.calls)
}

func TestRetryProviderStopsOnNonRetryableError(t *testing.T) {
	fatal := &ProviderError{Provider: "scripted", Retryable: false, Err: errors.New("invalid key")}
	next := &scriptedProvider{results: []error{fatal, nil}}
	provider := NewRetryProvider(next, RetryConfig{MaxAttempts: 3})
	provider.sleep = noSleep

	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "grade"})
	require.ErrorIs(t, err, fatal)
	require.Equal(t, 1, next.calls)
}

func TestRetryProviderExhaustsAttempts(t *testing.T) {
	transient := &ProviderError{Provider: "scripted", Retryable: true, Err: errors.New("timeout")}
	next := &scriptedProvider{results: []error{transient, transient, transient}}
	provider := NewRetryProvider(next, RetryConfig{MaxAttempts: 3})
	provider.sleep = noSleep

	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "grade"})
	require.ErrorIs(t, err, transient)
	require.Equal(t, 3, next.calls)
}

func TestRetryProviderDoesNotRetryConfigurationError(t *testing.T) {
	next := &scriptedProvider{results: []error{&ConfigurationError{Provider: "scripted", Reason: "api key is missing"}}}
	provider := NewRetryProvider(next, RetryConfig{MaxAttempts: 5})
	provider.sleep = noSleep

	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "grade"})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, 1, next.calls)
}
