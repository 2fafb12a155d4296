package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"golang.org/x/time/rate"

	"github.com/onnwee/aria/internal/llmconfig"
)

// Request parameters for every completion.
const (
	MaxTokens   = 900
	Temperature = 0.4
)

// OpenAICompleter calls an OpenAI-compatible chat completions endpoint.
// A client is built per call since the stored configuration may change.
type OpenAICompleter struct {
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
}

// CompleterOption configures an OpenAICompleter.
type CompleterOption func(*OpenAICompleter)

// WithRateLimit caps outgoing requests per minute. Zero disables limiting.
func WithRateLimit(perMinute, burst int) CompleterOption {
	return func(c *OpenAICompleter) {
		if perMinute <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// WithTimeout bounds a single completion call.
func WithTimeout(d time.Duration) CompleterOption {
	return func(c *OpenAICompleter) { c.timeout = d }
}

// WithMaxRetries sets the client retry count.
func WithMaxRetries(n int) CompleterOption {
	return func(c *OpenAICompleter) { c.maxRetries = n }
}

// NewOpenAICompleter creates a completer. Defaults: 30 requests per minute,
// 60s timeout, 2 retries.
func NewOpenAICompleter(opts ...CompleterOption) *OpenAICompleter {
	c := &OpenAICompleter{timeout: 60 * time.Second, maxRetries: 2}
	WithRateLimit(30, 5)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the system and user messages and returns the first choice.
func (c *OpenAICompleter) Complete(ctx context.Context, cfg llmconfig.Config, system, user string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfg = cfg.WithDefaults()
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(c.maxRetries),
	)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens:   openai.Int(MaxTokens),
		Temperature: openai.Float(Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
