package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
)

// NewAnalyzerService builds the configured provider and wraps it in the typed
// analyzer contract. The rate limiter is shared across every analyzer call
// site so scraper, matcher, and tailor workers draw from one budget.
func NewAnalyzerService(cfg *common.Config, logger arbor.ILogger) (interfaces.AnalyzerService, error) {
	var gen textGenerator
	var startTokens int

	switch cfg.LLM.Provider {
	case "claude", "":
		service, err := NewClaudeService(&cfg.Claude, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Claude provider: %w", err)
		}
		gen = service
		startTokens = cfg.Claude.MaxTokens

	case "gemini":
		service, err := NewGeminiService(&cfg.Gemini, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		gen = service
		startTokens = cfg.Gemini.MaxTokens

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}

	var limiter *rate.Limiter
	if cfg.LLM.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LLM.RequestsPerMinute/60.0), 1)
	}

	logger.Info().
		Str("provider", gen.Name()).
		Float64("requests_per_minute", cfg.LLM.RequestsPerMinute).
		Int("token_ceiling", cfg.LLM.TokenCeiling).
		Msg("Analyzer service initialized")

	return NewAnalyzer(gen, limiter, startTokens, cfg.LLM.TokenCeiling, logger), nil
}
