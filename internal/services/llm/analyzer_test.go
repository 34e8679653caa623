package llm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// scriptedGenerator replays canned responses (or errors) in order.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     int
	budgets   []int
}

type scriptedResponse struct {
	text string
	err  error
}

func (g *scriptedGenerator) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.budgets = append(g.budgets, maxTokens)
	if g.calls >= len(g.responses) {
		return "", &models.MalformedResponseError{Field: "script exhausted"}
	}
	r := g.responses[g.calls]
	g.calls++
	return r.text, r.err
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func newTestAnalyzer(gen textGenerator) *Analyzer {
	return NewAnalyzer(gen, nil, 1024, 8192, arbor.NewLogger())
}

const validVerdictJSON = `{
	"categories": [{"category": "experience", "met": true, "reasoning": "10 years"}],
	"deal_breakers": [],
	"possible_exceptions": ["compensation unknown"],
	"recommendation": "hire",
	"reasoning": "strong overall fit"
}`

func TestDecideNormalizesRecommendation(t *testing.T) {
	gen := &scriptedGenerator{responses: []scriptedResponse{{text: validVerdictJSON}}}

	verdict, err := newTestAnalyzer(gen).Decide(context.Background(), &models.JobDescription{Markdown: "posting"}, models.ResumeBlueprint{Summary: "engineer"}, models.PrioritiesBlueprint{})
	require.NoError(t, err)

	assert.Equal(t, models.RecommendationHire, verdict.Report.Recommendation)
	assert.Equal(t, "strong overall fit", verdict.Reasoning)
	require.Len(t, verdict.Report.Categories, 1)
	assert.True(t, verdict.Report.Categories[0].Met)
}

func TestDecideRetriesOnceOnMalformedResponse(t *testing.T) {
	gen := &scriptedGenerator{responses: []scriptedResponse{
		{text: "Sure! Here is my assessment in plain prose."},
		{text: validVerdictJSON},
	}}

	verdict, err := newTestAnalyzer(gen).Decide(context.Background(), &models.JobDescription{Markdown: "posting"}, models.ResumeBlueprint{}, models.PrioritiesBlueprint{})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, models.RecommendationHire, verdict.Report.Recommendation)
}

func TestDecideFailsAfterMalformedBudget(t *testing.T) {
	gen := &scriptedGenerator{responses: []scriptedResponse{
		{text: "not json"},
		{text: `{"categories": [], "reasoning": "no recommendation field"}`},
	}}

	_, err := newTestAnalyzer(gen).Decide(context.Background(), &models.JobDescription{}, models.ResumeBlueprint{}, models.PrioritiesBlueprint{})
	require.Error(t, err)
	assert.True(t, models.IsMalformed(err))
	assert.Equal(t, 2, gen.calls)
}

func TestDecideRecoversFromTruncation(t *testing.T) {
	gen := &scriptedGenerator{responses: []scriptedResponse{
		{err: &models.TruncatedError{MaxTokens: 1024}},
		{text: validVerdictJSON},
	}}

	verdict, err := newTestAnalyzer(gen).Decide(context.Background(), &models.JobDescription{}, models.ResumeBlueprint{}, models.PrioritiesBlueprint{})
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationHire, verdict.Report.Recommendation)
	assert.Equal(t, []int{1024, 2048}, gen.budgets, "second call carries a doubled token budget")
}

func TestParseJobDescriptionCarriesMarkdown(t *testing.T) {
	gen := &scriptedGenerator{responses: []scriptedResponse{{text: "```json\n" + `{
		"summary": "Build search infrastructure.",
		"responsibilities": ["Own the indexing pipeline"],
		"qualifications": ["Go", "distributed systems"],
		"benefits": ["Remote"]
	}` + "\n```"}}}

	desc, err := newTestAnalyzer(gen).ParseJobDescription(context.Background(), "# Posting\nraw markdown")
	require.NoError(t, err)
	assert.Equal(t, "Build search infrastructure.", desc.Summary)
	assert.Equal(t, "# Posting\nraw markdown", desc.Markdown)
	assert.Equal(t, []string{"Go", "distributed systems"}, desc.Qualifications)
}

func TestSummarizeResumeRequiresSummary(t *testing.T) {
	gen := &scriptedGenerator{responses: []scriptedResponse{{text: `{"core_strengths": ["Go"]}`}}}

	_, err := newTestAnalyzer(gen).SummarizeResume(context.Background(), &models.Resume{ID: "resume_1", Name: "Test"})
	require.Error(t, err)
	assert.True(t, models.IsMalformed(err))
}

func TestInferPrioritiesRequiresEveryCategory(t *testing.T) {
	partial := `{"levels": {"experience": "Core Requirement"}}`
	complete := `{"levels": {
		"experience": "Core Requirement",
		"domain_alignment": "Strongly Preferred",
		"tech_match": "Non-Negotiable",
		"seniority": "Core Requirement",
		"logistics": "Non-Negotiable",
		"compensation": "Low Priority",
		"culture": "Low Priority"
	}}`
	gen := &scriptedGenerator{responses: []scriptedResponse{{text: partial}, {text: complete}}}

	priorities, err := newTestAnalyzer(gen).InferPriorities(context.Background(), &models.JobDescription{Markdown: "posting"})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls, "incomplete category set retries once")
	assert.Equal(t, models.RequirementNonNegotiable, priorities.Levels[models.CategoryLogistics])
}

func TestTailorRunsTwoPasses(t *testing.T) {
	gapJSON := `{"gaps": ["no Kubernetes"], "strengths": ["Go depth"], "emphasis": ["distributed systems"], "reasoning": "solid base"}`
	rewriteJSON := `{
		"sections": {"summary": "Rewritten summary.", "experience": "Rewritten experience."},
		"prep": {"likely_questions": ["Why us?"], "talking_points": ["scaling work"]}
	}`
	gen := &scriptedGenerator{responses: []scriptedResponse{{text: gapJSON}, {text: rewriteJSON}}}

	resume := &models.Resume{
		ID:       "resume_1",
		Name:     "Test",
		Sections: map[string]string{"summary": "orig", "experience": "orig"},
	}
	verdict := &interfaces.Verdict{
		Report:    models.MatchReport{Recommendation: models.RecommendationHire},
		Reasoning: "fit",
	}

	content, err := newTestAnalyzer(gen).Tailor(context.Background(), resume, &models.JobDescription{Markdown: "posting"}, verdict)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, "Rewritten summary.", content.Sections["summary"])
	assert.Equal(t, []string{"no Kubernetes"}, content.Analysis.Gaps)
	require.NotNil(t, content.Prep)
	assert.Equal(t, []string{"Why us?"}, content.Prep.LikelyQuestions)
}

func TestDecodeJSONStripsFencesAndProse(t *testing.T) {
	var out struct {
		OK bool `json:"ok"`
	}

	require.NoError(t, decodeJSON("```json\n{\"ok\": true}\n```", &out))
	assert.True(t, out.OK)

	out.OK = false
	require.NoError(t, decodeJSON("Here you go:\n{\"ok\": true}\nHope that helps!", &out))
	assert.True(t, out.OK)

	err := decodeJSON("no json at all", &out)
	require.Error(t, err)
	assert.True(t, models.IsMalformed(err))
}
