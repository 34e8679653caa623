package interfaces

import (
	"context"

	"github.com/ternarybob/peto/internal/models"
)

// Verdict is the decision analyzer's structured output for one job.
type Verdict struct {
	Report models.MatchReport
	// Reasoning is the free-text summary attached to the match result.
	Reasoning string
}

// TailoredContent is the tailoring analyzer's two-pass output: gap analysis
// followed by rewritten resume sections.
type TailoredContent struct {
	Sections map[string]string
	Analysis models.GapAnalysis
	Prep     *models.InterviewPrep
}

// AnalyzerService is the typed contract over the LLM-backed capability. Every
// call site parses the provider's response into the declared struct before
// use; a response that cannot be parsed surfaces as a
// models.MalformedResponseError rather than leaking raw JSON downstream.
//
// Providers classify their own failures: network/5xx/429 errors are wrapped
// in models.TransientError, token-ceiling stops in models.TruncatedError.
type AnalyzerService interface {
	// ParseJobDescription turns normalized posting markdown into the
	// structured description persisted with a scraped job.
	ParseJobDescription(ctx context.Context, markdown string) (*models.JobDescription, error)

	// SummarizeResume produces the narrative blueprint for a resume.
	// Callers memoize the result; the blueprint is session-stable.
	SummarizeResume(ctx context.Context, resume *models.Resume) (*models.ResumeBlueprint, error)

	// InferPriorities classifies requirement strength per evaluation
	// category from a job description.
	InferPriorities(ctx context.Context, desc *models.JobDescription) (*models.PrioritiesBlueprint, error)

	// Decide scores job/resume fit given the description, the candidate
	// blueprint, and the (already overridden) priorities blueprint.
	Decide(ctx context.Context, desc *models.JobDescription, blueprint models.ResumeBlueprint, priorities models.PrioritiesBlueprint) (*Verdict, error)

	// Tailor rewrites resume sections to emphasize fit against one job.
	Tailor(ctx context.Context, resume *models.Resume, desc *models.JobDescription, verdict *Verdict) (*TailoredContent, error)
}
