package llm

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

// No retry library appears anywhere in the example pack's dependency set;
// every provider SDK (anthropic-sdk-go, openai-go, genai) leaves
// application-level retry to the caller. This loop is the stdlib
// implementation the spec's closed error taxonomy calls for.

// backoffBase and backoffCap bound the exponential backoff schedule: base *
// 2^attempt, capped, then full jitter applied.
const (
	backoffBase = 250 * time.Millisecond
	backoffCap  = 8 * time.Second
)

func backoffDelay(attempt int) time.Duration {
	scaled := float64(backoffBase) * math.Pow(2, float64(attempt))
	if scaled > float64(backoffCap) {
		scaled = float64(backoffCap)
	}
	return time.Duration(rand.Int63n(int64(scaled) + 1))
}

// GenerateWithRetry calls provider.Generate, retrying on the retryable
// subset of the closed chat-provider error taxonomy with exponential
// backoff and full jitter, up to maxRetries additional attempts. A
// non-retryable error, or exhausting maxRetries, returns the last error
// directly — callers surface it as a failed turn.
func GenerateWithRetry(ctx context.Context, provider ChatProvider, systemPrompt string, tools []toolset.Schema, history []message.Message, maxRetries int) (*Stream, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		stream, err := provider.Generate(ctx, systemPrompt, tools, history)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}
