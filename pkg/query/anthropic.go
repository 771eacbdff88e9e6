package query

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v5"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = anthropic.ModelClaude3_5Haiku20241022

// AnthropicClient implements LLMClient against the Anthropic API with
// retries on transient failures. Failures the retries cannot cure are
// reported as ErrCompletionUnavailable so the caller can fall back.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicClient builds a client from the ANTHROPIC_API_KEY
// environment variable. Construction succeeds without a key; the missing
// credential surfaces as unavailability on the first Complete call.
func NewAnthropicClient(model anthropic.Model, maxTokens int64) *AnthropicClient {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Complete sends the prompt pair and returns the first text block of the
// response.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY is not set: %w", ErrCompletionUnavailable)
	}

	msg, err := backoff.Retry(ctx, func() (*anthropic.Message, error) {
		msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System: []anthropic.TextBlockParam{
				{Type: "text", Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		})
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return msg, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(30*time.Second))
	if err != nil {
		if unavailable(err) {
			return "", fmt.Errorf("anthropic API unreachable: %v: %w", err, ErrCompletionUnavailable)
		}
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// retryable reports whether a call is worth retrying: rate limits, server
// errors, request timeouts, and transport failures.
func retryable(err error) bool {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		return apierr.StatusCode >= 500
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// unavailable reports whether a final error means the completion service
// cannot be reached at all, as opposed to rejecting this request.
func unavailable(err error) bool {
	if retryable(err) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded)
}
