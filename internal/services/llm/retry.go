package llm

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/models"
)

// RetryConfig parameterizes the shared retry-with-backoff combinator used by
// every analyzer call site. Transient upstream failures get the full attempt
// budget; malformed responses get a deliberately smaller one.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to the backoff on each retry.
	BackoffMultiplier float64

	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

// Default retry budgets. Transient errors (network, 5xx, rate limits) are
// given more attempts than malformed responses, which rarely improve without
// a prompt change.
const (
	DefaultTransientAttempts = 4
	DefaultMalformedAttempts = 2
	DefaultInitialBackoff    = 2 * time.Second
	DefaultMaxBackoff        = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// TransientRetryConfig returns the retry policy for network/5xx/timeout
// failures.
func TransientRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       DefaultTransientAttempts,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
		Retryable:         models.IsTransient,
	}
}

// MalformedRetryConfig returns the smaller retry policy for analyzer
// responses missing required fields.
func MalformedRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       DefaultMalformedAttempts,
		InitialBackoff:    time.Second,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: DefaultBackoffMultiplier,
		Retryable:         models.IsMalformed,
	}
}

// Retry runs op until it succeeds, exhausts the attempt budget, or hits a
// non-retryable error. The last error is returned unwrapped so callers can
// classify it.
func Retry(ctx context.Context, logger arbor.ILogger, config RetryConfig, op func(ctx context.Context) error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if config.Retryable != nil && !config.Retryable(lastErr) {
			return lastErr
		}
		if attempt == config.MaxAttempts {
			break
		}

		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", config.MaxAttempts).
			Dur("backoff", backoff).
			Msg("Analyzer call failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}

// generateFn produces one completion under a given output-token budget.
type generateFn func(ctx context.Context, maxTokens int) (string, error)

// generateWithBudget handles token-ceiling truncation: when the provider
// stops at the output limit, the budget is doubled and the call retried,
// bounded by the hard ceiling. Truncation is not a failure until the ceiling
// is exhausted.
func generateWithBudget(ctx context.Context, logger arbor.ILogger, gen generateFn, startTokens, ceiling int) (string, error) {
	if startTokens < 1 {
		startTokens = 1024
	}
	if ceiling < startTokens {
		ceiling = startTokens
	}

	budget := startTokens
	for {
		text, err := gen(ctx, budget)
		if err == nil {
			return text, nil
		}
		if !models.IsTruncated(err) {
			return "", err
		}
		if budget >= ceiling {
			return "", err
		}

		budget *= 2
		if budget > ceiling {
			budget = ceiling
		}
		logger.Warn().
			Int("max_tokens", budget).
			Msg("Analyzer output truncated, retrying with doubled token budget")
	}
}

// isTransientMessage classifies provider error text as transient. Both SDKs
// surface HTTP status codes in the error string.
func isTransientMessage(msg string) bool {
	for _, marker := range []string{
		"429", "500", "502", "503", "504", "529",
		"RESOURCE_EXHAUSTED", "overloaded", "rate limit",
		"timeout", "deadline exceeded", "connection re", "EOF",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
