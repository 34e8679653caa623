package models

import (
	"time"
)

// TailoredStatus is the terminal-state flag on a tailored artifact
type TailoredStatus string

const (
	TailoredStatusPending TailoredStatus = "pending"
	TailoredStatusSuccess TailoredStatus = "success"
	TailoredStatusFailed  TailoredStatus = "failed"
)

// GapAnalysis is the first tailoring pass: where the resume falls short of
// the posting, and which strengths to lead with.
type GapAnalysis struct {
	Gaps      []string `json:"gaps,omitempty"`
	Strengths []string `json:"strengths,omitempty"`
	Emphasis  []string `json:"emphasis,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// InterviewPrep is optional analyzer output attached to a tailored artifact.
type InterviewPrep struct {
	LikelyQuestions []string `json:"likely_questions,omitempty"`
	TalkingPoints   []string `json:"talking_points,omitempty"`
}

// TailoredResume is the output artifact of the tailor worker: rewritten
// resume sections plus the rendered document path. Immutable once status is
// terminal, except for idempotent re-tailoring which upserts in place.
type TailoredResume struct {
	// ID is a plain field; rows are keyed by the match they belong to so a
	// retried pass replaces the previous artifact.
	ID           string            `json:"id" badgerhold:"index"`
	OwnerID      string            `json:"owner_id" badgerhold:"index"`
	ResumeID     string            `json:"resume_id"`
	JobID        string            `json:"job_id" badgerhold:"index"`
	MatchID      string            `json:"match_id" badgerhold:"index"`
	CampaignID   string            `json:"campaign_id" badgerhold:"index"`
	Sections     map[string]string `json:"sections,omitempty"`
	Status       TailoredStatus    `json:"status" badgerhold:"index"`
	DocumentPath string            `json:"document_path,omitempty"`
	Analysis     *GapAnalysis      `json:"analysis,omitempty"`
	Prep         *InterviewPrep    `json:"prep,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
