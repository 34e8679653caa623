package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/models"
)

// ClaudeService generates completions via the Anthropic API. It implements
// the textGenerator provider contract; typed analyzer behavior lives in
// Analyzer.
type ClaudeService struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  anthropic.Client
	timeout time.Duration
}

// NewClaudeService creates the Anthropic-backed provider.
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY, PETO_CLAUDE_API_KEY, or claude.api_key in config)")
	}
	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}

	timeout := common.ParseDuration(config.Timeout, 120*time.Second)

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Claude provider initialized")

	return &ClaudeService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

func (s *ClaudeService) Name() string { return "claude" }

// Generate runs one completion under maxTokens. A max_tokens stop reason is
// surfaced as a TruncatedError so the caller can retry with a doubled budget;
// rate-limit and 5xx failures come back as TransientError.
func (s *ClaudeService) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	startTime := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		if isTransientMessage(err.Error()) {
			return "", &models.TransientError{Err: err}
		}
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if resp.StopReason == anthropic.StopReasonMaxTokens {
		s.logger.Warn().
			Int("max_tokens", maxTokens).
			Msg("Claude output truncated at token ceiling")
		return "", &models.TruncatedError{MaxTokens: maxTokens}
	}

	if text.Len() == 0 {
		return "", &models.MalformedResponseError{Err: fmt.Errorf("empty response from Claude API")}
	}

	s.logger.Trace().
		Int("response_length", text.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Claude completion finished")

	return text.String(), nil
}
