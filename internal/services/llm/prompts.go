package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// Prompt builders return (system, user) pairs. Each declares the exact JSON
// shape expected back so the typed decoders in analyzer.go can be strict.

func describePrompt(markdown string) (string, string) {
	system := "You extract structured data from job postings. Respond with JSON only, no prose, no markdown fences."

	prompt := fmt.Sprintf(`Extract the structured description from this job posting.

Respond with a JSON object:
{
  "summary": "one-paragraph role summary",
  "responsibilities": ["..."],
  "qualifications": ["..."],
  "benefits": ["..."]
}

Posting:
%s`, markdown)

	return system, prompt
}

func blueprintPrompt(resume *models.Resume) (string, string) {
	system := "You are a career analyst summarizing resumes. Respond with JSON only."

	prompt := fmt.Sprintf(`Synthesize this resume into a candidate blueprint.

Respond with a JSON object:
{
  "summary": "narrative summary of the candidate",
  "core_strengths": ["..."],
  "years_experience": 0,
  "domains": ["..."],
  "technologies": ["..."],
  "seniority": "junior|mid|senior|staff|principal",
  "contact": "one-line contact and availability note"
}

Resume:
%s`, resumeText(resume))

	return system, prompt
}

func prioritiesPrompt(desc *models.JobDescription) (string, string) {
	system := "You classify how strongly a job posting requires each evaluation category. Respond with JSON only."

	levels := make([]string, 0, len(models.RequirementLevels))
	for _, l := range models.RequirementLevels {
		levels = append(levels, string(l))
	}

	prompt := fmt.Sprintf(`Classify the requirement strength of each category below for this posting.
Every category must appear exactly once. Allowed levels: %s.

Categories: %s

Respond with a JSON object:
{
  "levels": {"<category>": "<level>", ...}
}

Posting:
%s`, strings.Join(levels, ", "), strings.Join(models.PriorityCategories, ", "), descText(desc))

	return system, prompt
}

func decidePrompt(desc *models.JobDescription, blueprint models.ResumeBlueprint, priorities models.PrioritiesBlueprint) (string, string) {
	system := "You are a hiring evaluator scoring candidate/job fit. Respond with JSON only."

	blueprintJSON, _ := json.MarshalIndent(blueprint, "", "  ")
	prioritiesJSON, _ := json.MarshalIndent(priorities.Levels, "", "  ")

	prompt := fmt.Sprintf(`Evaluate this candidate against this posting. Weigh each category by its
requirement level; a failed non-negotiable category is a deal breaker.

Respond with a JSON object:
{
  "categories": [{"category": "...", "met": true, "reasoning": "..."}],
  "deal_breakers": ["..."],
  "possible_exceptions": ["..."],
  "recommendation": "STRONG HIRE|HIRE|INTERVIEW|PROCEED TO INTERVIEW|REJECT",
  "reasoning": "overall assessment"
}

Requirement levels:
%s

Candidate blueprint:
%s

Posting:
%s`, prioritiesJSON, blueprintJSON, descText(desc))

	return system, prompt
}

func gapAnalysisPrompt(resume *models.Resume, desc *models.JobDescription, verdict *interfaces.Verdict) (string, string) {
	system := "You analyze resume/posting gaps before a tailoring pass. Respond with JSON only."

	verdictJSON, _ := json.MarshalIndent(verdict.Report, "", "  ")

	prompt := fmt.Sprintf(`Identify gaps between this resume and posting, and which strengths to lead with.

Respond with a JSON object:
{
  "gaps": ["..."],
  "strengths": ["..."],
  "emphasis": ["..."],
  "reasoning": "..."
}

Prior fit evaluation:
%s

Resume:
%s

Posting:
%s`, verdictJSON, resumeText(resume), descText(desc))

	return system, prompt
}

func rewritePrompt(resume *models.Resume, desc *models.JobDescription, analysis *models.GapAnalysis) (string, string) {
	system := "You rewrite resume sections to emphasize fit for one posting. Never invent experience. Respond with JSON only."

	analysisJSON, _ := json.MarshalIndent(analysis, "", "  ")

	sections := make([]string, 0, len(resume.Sections))
	for name := range resume.Sections {
		sections = append(sections, name)
	}

	prompt := fmt.Sprintf(`Rewrite the resume sections below for this posting, guided by the gap
analysis. Keep every factual claim from the original; reorder and rephrase only.
Return every section name listed: %s.

Respond with a JSON object:
{
  "sections": {"<section>": "rewritten text", ...},
  "prep": {"likely_questions": ["..."], "talking_points": ["..."]}
}

Gap analysis:
%s

Resume:
%s

Posting:
%s`, strings.Join(sections, ", "), analysisJSON, resumeText(resume), descText(desc))

	return system, prompt
}

// resumeText flattens a resume into labeled plain text for prompt use.
func resumeText(resume *models.Resume) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", resume.Name)
	if len(resume.Skills) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(resume.Skills, ", "))
	}
	for name, body := range resume.Sections {
		fmt.Fprintf(&b, "\n## %s\n%s\n", name, body)
	}
	return b.String()
}

// descText prefers the normalized markdown, falling back to the structured
// fields when markdown is absent.
func descText(desc *models.JobDescription) string {
	if strings.TrimSpace(desc.Markdown) != "" {
		return desc.Markdown
	}
	var b strings.Builder
	if desc.Summary != "" {
		b.WriteString(desc.Summary + "\n")
	}
	writeList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s:\n", label)
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	writeList("Responsibilities", desc.Responsibilities)
	writeList("Qualifications", desc.Qualifications)
	writeList("Benefits", desc.Benefits)
	return b.String()
}
