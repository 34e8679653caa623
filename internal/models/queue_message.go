package models

import (
	"encoding/json"
	"fmt"
)

// Queue names. Queues are declared durable; publishes are persistent (the
// transport writes messages through to disk before Publish returns).
const (
	QueueScrapeMissions = "scrape.missions"
	QueueMatchJobs      = "match.jobs"
	QueueTailorMissions = "tailor.missions"
)

// QueueMessage is the wire envelope stored in the queue. Bodies are
// JSON-encoded UTF-8. Keep it simple - just enough to route the work.
type QueueMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ScrapeMission instructs a scraper worker to run one scraping pass for a
// campaign. Launch publishes N identical missions to model N workers pulling
// from the same mission.
type ScrapeMission struct {
	CampaignID     string `json:"campaign_id" validate:"required"`
	OwnerID        string `json:"owner_id" validate:"required"`
	TargetRole     string `json:"target_role" validate:"required"`
	TargetLocation string `json:"target_location"`
	ResumeID       string `json:"resume_id" validate:"required"`
}

// MatchJob carries one scraped job into the matcher stage. The message
// carries the persisted row's ID, which enforces scrape-before-match ordering
// within a single job's pipeline.
type MatchJob struct {
	JobID      string `json:"job_id" validate:"required"`
	CampaignID string `json:"campaign_id" validate:"required"`
	OwnerID    string `json:"owner_id" validate:"required"`
	ResumeID   string `json:"resume_id" validate:"required"`
}

// TailorMission instructs a tailor worker to produce one tailored artifact.
type TailorMission struct {
	JobID      string `json:"job_id" validate:"required"`
	MatchID    string `json:"match_id" validate:"required"`
	CampaignID string `json:"campaign_id" validate:"required"`
	ResumeID   string `json:"resume_id" validate:"required"`
}

// NewQueueMessage wraps a typed payload in the wire envelope.
func NewQueueMessage(msgType string, payload interface{}) (QueueMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return QueueMessage{}, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return QueueMessage{Type: msgType, Payload: data}, nil
}

// DecodePayload unmarshals the envelope payload into out.
func (m *QueueMessage) DecodePayload(out interface{}) error {
	if err := json.Unmarshal(m.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}
