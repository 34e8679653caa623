package models

import (
	"time"
)

// TailoringStatus tracks the downstream tailoring stage for one match
type TailoringStatus string

const (
	TailoringStatusPending    TailoringStatus = "pending"
	TailoringStatusProcessing TailoringStatus = "processing"
	TailoringStatusCompleted  TailoringStatus = "completed"
	TailoringStatusFailed     TailoringStatus = "failed"
)

// Recommendation is the fixed label set returned by the decision analyzer
type Recommendation string

const (
	RecommendationStrongHire         Recommendation = "STRONG HIRE"
	RecommendationHire               Recommendation = "HIRE"
	RecommendationInterview          Recommendation = "INTERVIEW"
	RecommendationProceedToInterview Recommendation = "PROCEED TO INTERVIEW"
	RecommendationReject             Recommendation = "REJECT"
)

// ConfidenceFor maps a recommendation label to a numeric confidence score.
// Unknown labels map to 0.
func ConfidenceFor(r Recommendation) float64 {
	switch r {
	case RecommendationStrongHire:
		return 0.95
	case RecommendationHire:
		return 0.90
	case RecommendationInterview:
		return 0.80
	case RecommendationProceedToInterview:
		return 0.75
	case RecommendationReject:
		return 0.10
	default:
		return 0.0
	}
}

// Positive reports whether the recommendation gates a tailoring pass.
// Everything except REJECT (and unknown labels) is positive.
func (r Recommendation) Positive() bool {
	switch r {
	case RecommendationStrongHire, RecommendationHire,
		RecommendationInterview, RecommendationProceedToInterview:
		return true
	default:
		return false
	}
}

// CategoryVerdict is the analyzer's per-criterion reasoning in a decision.
type CategoryVerdict struct {
	Category  string `json:"category"`
	Met       bool   `json:"met"`
	Reasoning string `json:"reasoning"`
}

// MatchReport is the full structured analysis attached to a match result.
type MatchReport struct {
	Categories         []CategoryVerdict `json:"categories,omitempty"`
	DealBreakers       []string          `json:"deal_breakers,omitempty"`
	PossibleExceptions []string          `json:"possible_exceptions,omitempty"`
	Recommendation     Recommendation    `json:"recommendation"`
}

// MatchResult records one analyzer verdict for one (owner, job) pair.
// The pair is the natural key: creating a second result for the same pair is
// an update, never an insert. TailoringStatus is mutated only by the tailor
// worker (pending -> processing -> completed|failed).
type MatchResult struct {
	// ID is a plain field; rows are keyed by the (owner, job) pair so a
	// second decision for the same pair updates in place.
	ID              string          `json:"id" badgerhold:"index"`
	OwnerID         string          `json:"owner_id" badgerhold:"index"`
	JobID           string          `json:"job_id" badgerhold:"index"`
	CampaignID      string          `json:"campaign_id" badgerhold:"index"`
	ResumeID        string          `json:"resume_id"`
	Confidence      float64         `json:"confidence"`
	Reasoning       string          `json:"reasoning"`
	Report          MatchReport     `json:"report"`
	TailoringStatus TailoringStatus `json:"tailoring_status" badgerhold:"index"`
	ArtifactID      string          `json:"artifact_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PairKey returns the composite natural key for the (owner, job) pair.
func (m *MatchResult) PairKey() string {
	return m.OwnerID + "|" + m.JobID
}
