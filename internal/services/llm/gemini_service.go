package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/models"
)

// GeminiService generates completions via the Gemini API. Alternative
// provider behind the same textGenerator contract as ClaudeService.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiService creates the Gemini-backed provider.
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or gemini.api_key in config)")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	timeout := common.ParseDuration(config.Timeout, 120*time.Second)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini provider initialized")

	return &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

func (s *GeminiService) Name() string { return "gemini" }

// Generate runs one completion under maxTokens. A MAX_TOKENS finish reason
// is surfaced as a TruncatedError; quota and availability failures come back
// as TransientError.
func (s *GeminiService) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	startTime := time.Now()
	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, config)
	if err != nil {
		if isTransientMessage(err.Error()) {
			return "", &models.TransientError{Err: err}
		}
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	var text strings.Builder
	var finishReason genai.FinishReason
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				finishReason = candidate.FinishReason
				break
			}
		}
	}

	if finishReason == genai.FinishReasonMaxTokens {
		s.logger.Warn().
			Int("max_tokens", maxTokens).
			Msg("Gemini output truncated at token ceiling")
		return "", &models.TruncatedError{MaxTokens: maxTokens}
	}

	if text.Len() == 0 {
		return "", &models.MalformedResponseError{Err: fmt.Errorf("empty response from Gemini API")}
	}

	s.logger.Trace().
		Int("response_length", text.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini completion finished")

	return text.String(), nil
}
