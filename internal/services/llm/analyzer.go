package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// textGenerator is the minimal provider contract: produce one completion
// under an output-token budget. Providers classify their own failures
// (TransientError, TruncatedError) before returning.
type textGenerator interface {
	Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error)
	Name() string
}

// Analyzer implements the typed AnalyzerService contract over any provider.
// All call sites share one retry policy, one truncation-recovery loop, and
// one client-side rate limiter.
type Analyzer struct {
	gen         textGenerator
	logger      arbor.ILogger
	limiter     *rate.Limiter
	startTokens int
	ceiling     int
}

// NewAnalyzer wraps a provider in the typed analyzer contract.
func NewAnalyzer(gen textGenerator, limiter *rate.Limiter, startTokens, ceiling int, logger arbor.ILogger) *Analyzer {
	if startTokens <= 0 {
		startTokens = 4096
	}
	if ceiling < startTokens {
		ceiling = startTokens
	}
	return &Analyzer{
		gen:         gen,
		logger:      logger,
		limiter:     limiter,
		startTokens: startTokens,
		ceiling:     ceiling,
	}
}

// complete runs one analyzer call: rate limit, transient-retried generation
// with truncation recovery, then strict JSON decoding into out.
func (a *Analyzer) complete(ctx context.Context, system, prompt string, out interface{}) error {
	return Retry(ctx, a.logger, TransientRetryConfig(), func(ctx context.Context) error {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		text, err := generateWithBudget(ctx, a.logger, func(ctx context.Context, maxTokens int) (string, error) {
			return a.gen.Generate(ctx, system, prompt, maxTokens)
		}, a.startTokens, a.ceiling)
		if err != nil {
			return err
		}

		return decodeJSON(text, out)
	})
}

func (a *Analyzer) ParseJobDescription(ctx context.Context, markdown string) (*models.JobDescription, error) {
	system, prompt := describePrompt(markdown)

	var desc models.JobDescription
	if err := a.complete(ctx, system, prompt, &desc); err != nil {
		return nil, fmt.Errorf("parse job description: %w", err)
	}
	desc.Markdown = markdown
	return &desc, nil
}

func (a *Analyzer) SummarizeResume(ctx context.Context, resume *models.Resume) (*models.ResumeBlueprint, error) {
	system, prompt := blueprintPrompt(resume)

	var blueprint models.ResumeBlueprint
	if err := a.complete(ctx, system, prompt, &blueprint); err != nil {
		return nil, fmt.Errorf("summarize resume %s: %w", resume.ID, err)
	}
	if strings.TrimSpace(blueprint.Summary) == "" {
		return nil, &models.MalformedResponseError{Field: "summary"}
	}
	return &blueprint, nil
}

func (a *Analyzer) InferPriorities(ctx context.Context, desc *models.JobDescription) (*models.PrioritiesBlueprint, error) {
	system, prompt := prioritiesPrompt(desc)

	var priorities models.PrioritiesBlueprint
	err := Retry(ctx, a.logger, MalformedRetryConfig(), func(ctx context.Context) error {
		priorities = models.PrioritiesBlueprint{}
		if err := a.complete(ctx, system, prompt, &priorities); err != nil {
			return err
		}
		return validatePriorities(&priorities)
	})
	if err != nil {
		return nil, fmt.Errorf("infer priorities: %w", err)
	}
	return &priorities, nil
}

func (a *Analyzer) Decide(ctx context.Context, desc *models.JobDescription, blueprint models.ResumeBlueprint, priorities models.PrioritiesBlueprint) (*interfaces.Verdict, error) {
	system, prompt := decidePrompt(desc, blueprint, priorities)

	var verdict interfaces.Verdict
	// Malformed responses get up to 2 attempts total; failure then
	// propagates to the caller's batch handling, never silently dropped.
	err := Retry(ctx, a.logger, MalformedRetryConfig(), func(ctx context.Context) error {
		var payload verdictPayload
		if err := a.complete(ctx, system, prompt, &payload); err != nil {
			return err
		}

		recommendation := models.Recommendation(strings.ToUpper(strings.TrimSpace(payload.Recommendation)))
		if recommendation == "" {
			return &models.MalformedResponseError{Field: "recommendation"}
		}

		verdict = interfaces.Verdict{
			Reasoning: payload.Reasoning,
			Report: models.MatchReport{
				Categories:         payload.Categories,
				DealBreakers:       payload.DealBreakers,
				PossibleExceptions: payload.PossibleExceptions,
				Recommendation:     recommendation,
			},
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decide: %w", err)
	}
	return &verdict, nil
}

func (a *Analyzer) Tailor(ctx context.Context, resume *models.Resume, desc *models.JobDescription, verdict *interfaces.Verdict) (*interfaces.TailoredContent, error) {
	// Two-pass protocol: analyze gaps first, then rewrite sections against
	// that analysis.
	gapSystem, gapPrompt := gapAnalysisPrompt(resume, desc, verdict)

	var analysis models.GapAnalysis
	if err := a.complete(ctx, gapSystem, gapPrompt, &analysis); err != nil {
		return nil, fmt.Errorf("tailor gap analysis: %w", err)
	}

	rewriteSystem, rewritePrompt := rewritePrompt(resume, desc, &analysis)

	var payload tailorPayload
	err := Retry(ctx, a.logger, MalformedRetryConfig(), func(ctx context.Context) error {
		payload = tailorPayload{}
		if err := a.complete(ctx, rewriteSystem, rewritePrompt, &payload); err != nil {
			return err
		}
		if len(payload.Sections) == 0 {
			return &models.MalformedResponseError{Field: "sections"}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tailor rewrite: %w", err)
	}

	return &interfaces.TailoredContent{
		Sections: payload.Sections,
		Analysis: analysis,
		Prep:     payload.Prep,
	}, nil
}

// verdictPayload is the decision call's wire shape.
type verdictPayload struct {
	Categories         []models.CategoryVerdict `json:"categories"`
	DealBreakers       []string                 `json:"deal_breakers"`
	PossibleExceptions []string                 `json:"possible_exceptions"`
	Recommendation     string                   `json:"recommendation"`
	Reasoning          string                   `json:"reasoning"`
}

// tailorPayload is the rewrite call's wire shape.
type tailorPayload struct {
	Sections map[string]string     `json:"sections"`
	Prep     *models.InterviewPrep `json:"prep,omitempty"`
}

// validatePriorities requires a level for every fixed evaluation category.
func validatePriorities(p *models.PrioritiesBlueprint) error {
	if len(p.Levels) == 0 {
		return &models.MalformedResponseError{Field: "levels"}
	}
	for _, category := range models.PriorityCategories {
		if _, ok := p.Levels[category]; !ok {
			return &models.MalformedResponseError{Field: "levels." + category}
		}
	}
	return nil
}

// decodeJSON strictly parses a model completion as a JSON document, peeling
// markdown code fences first. Anything unparseable is a typed malformed
// error rather than an exception deep in calling code.
func decodeJSON(text string, out interface{}) error {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Some providers wrap JSON in prose; isolate the outermost object.
	if start := strings.Index(cleaned, "{"); start > 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &models.MalformedResponseError{Err: err}
	}
	return nil
}

// Ensure Analyzer implements the service contract
var _ interfaces.AnalyzerService = (*Analyzer)(nil)
