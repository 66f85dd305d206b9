package ai

import (
	"context"
	"fmt"
)

// CompletionRequest describes a single text-completion call.
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Temperature  float32
	MaxTokens    int
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the structured result of a provider call.
type Completion struct {
	Content      string `json:"content"`
	Usage        Usage  `json:"usage"`
	FinishReason string `json:"finish_reason"`
}

// Provider abstracts the external text-completion service used for grading.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// ProviderError wraps a failed provider call. Retryable errors (rate limits,
// timeouts, transient network and server failures) may be attempted again.
type ProviderError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (retryable=%t): %v", e.Provider, e.Retryable, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ConfigurationError indicates credentials or required settings are absent.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s provider misconfigured: %s", e.Provider, e.Reason)
}
