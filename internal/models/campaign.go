package models

import (
	"time"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusStopped   CampaignStatus = "stopped"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// Campaign represents one end-to-end pipeline run for one owner/role/location
// combination. The status field is the single source of truth for cooperative
// cancellation: workers poll it at checkpoint boundaries and exit cleanly when
// it is no longer "running". Only the campaign service writes status.
//
// At most one campaign per owner may be running at a time. This is enforced
// at launch, not by a store constraint, so a launch race can produce two
// running campaigns; workers tolerate this.
type Campaign struct {
	ID             string         `json:"id" badgerhold:"key"`
	OwnerID        string         `json:"owner_id" badgerhold:"index"`
	TargetRole     string         `json:"target_role"`
	TargetLocation string         `json:"target_location"`
	ResumeID       string         `json:"resume_id"`
	Status         CampaignStatus `json:"status" badgerhold:"index"`
	// Error holds the fatal scraper error when Status is "failed"
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}

// Active reports whether workers should keep processing units of work for
// this campaign.
func (c *Campaign) Active() bool {
	return c.Status == CampaignStatusRunning
}

// CampaignStatusReport aggregates per-stage counts for one campaign. Counts
// are computed by independent queries against the three work-item stores, not
// maintained as running counters, so the report is eventually consistent but
// crash-safe.
type CampaignStatusReport struct {
	CampaignID   string         `json:"campaign_id"`
	Status       CampaignStatus `json:"status"`
	JobsScraped  int            `json:"jobs_scraped"`
	JobsMatched  int            `json:"jobs_matched"`      // matched minus tailored-successful
	JobsTailored int            `json:"jobs_tailored"`     // tailored with status success
	TotalMatched int            `json:"total_matched"`     // all match results
}

// InstanceCounts controls how many identical scrape missions are fanned out
// at launch. Multiple identical messages model N workers pulling from the
// same mission, not N distinct missions.
type InstanceCounts struct {
	Scrapers int `json:"scrapers"`
}
