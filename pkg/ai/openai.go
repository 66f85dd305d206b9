package ai

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gradeflow",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of provider completion requests",
	}, []string{"provider", "model"})

	completionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of failed provider completion requests",
	}, []string{"provider", "model"})
)

const openAIProviderName = "openai"

// OpenAIConfig defines configuration options for the OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	DefaultModel   string
	MaxTokens      int
	Temperature    float32
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// OpenAIProvider implements Provider against the OpenAI chat completion API.
// The underlying client is created lazily on first use so that a missing key
// surfaces as a ConfigurationError rather than a startup crash.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger

	mu     sync.Mutex
	client *openai.Client
}

// NewOpenAIProvider builds the provider using the supplied configuration.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OpenAIProvider{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/arketa-lab/gradeflow-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_provider").Logger(),
	}
}

// Name identifies the provider in usage records and pricing lookups.
func (p *OpenAIProvider) Name() string {
	return openAIProviderName
}

func (p *OpenAIProvider) getClient() (*openai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	if p.cfg.APIKey == "" {
		return nil, &ConfigurationError{Provider: openAIProviderName, Reason: "api key is missing"}
	}

	p.client = openai.NewClientWithConfig(openai.DefaultConfig(p.cfg.APIKey))
	return p.client, nil
}

// Complete sends the completion request and returns structured content plus
// token usage. A deadline is always enforced; an exceeded deadline is a
// retryable ProviderError.
func (p *OpenAIProvider) Complete(parent context.Context, req CompletionRequest) (Completion, error) {
	client, err := p.getClient()
	if err != nil {
		return Completion{}, err
	}

	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}

	ctx, span := p.tracer.Start(parent, "openai.complete", trace.WithAttributes(
		attribute.String("model", model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	request := openai.ChatCompletionRequest{
		Model:          model,
		MaxTokens:      maxTokens,
		Temperature:    temperature,
		Messages:       messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	completionDuration.WithLabelValues(openAIProviderName, model).Observe(duration.Seconds())

	if err != nil {
		completionFailures.WithLabelValues(openAIProviderName, model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		providerErr := &ProviderError{
			Provider:  openAIProviderName,
			Retryable: isRetryable(err),
			Err:       err,
		}
		p.logger.Warn().Err(err).Str("model", model).Bool("retryable", providerErr.Retryable).Msg("completion request failed")
		return Completion{}, providerErr
	}

	if len(resp.Choices) == 0 {
		err := errors.New("no choices returned")
		completionFailures.WithLabelValues(openAIProviderName, model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Completion{}, &ProviderError{Provider: openAIProviderName, Retryable: true, Err: err}
	}

	choice := resp.Choices[0]
	span.SetAttributes(
		attribute.Int("usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("usage.completion_tokens", resp.Usage.CompletionTokens),
	)

	return Completion{
		Content: choice.Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: string(choice.FinishReason),
	}, nil
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
