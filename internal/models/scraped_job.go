package models

import (
	"strings"
	"time"
)

// Relevance is the tri-state filtering flag on a scraped job
type Relevance string

const (
	RelevancePending    Relevance = "pending"
	RelevanceRelevant   Relevance = "relevant"
	RelevanceIrrelevant Relevance = "irrelevant"
)

// JobDescription holds the structured description extracted from a posting.
type JobDescription struct {
	Summary          string   `json:"summary,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	Qualifications   []string `json:"qualifications,omitempty"`
	Benefits         []string `json:"benefits,omitempty"`
	// Markdown is the normalized full description text fed to the analyzer
	Markdown string `json:"markdown,omitempty"`
}

// ScrapedJob is one discovered job posting. The posting URL is the natural
// key: duplicate detection before insert is mandatory because the dataset is
// append-only across repeated scrape runs. Rows are soft-deleted to preserve
// auditability.
type ScrapedJob struct {
	// ID is a plain field, not the store key: rows are keyed by a hash of
	// the posting URL so insertion enforces natural-key uniqueness.
	ID          string         `json:"id" badgerhold:"index"`
	URL         string         `json:"url" badgerhold:"unique"`
	Title       string         `json:"title"`
	CompanyName string         `json:"company_name"`
	CompanyURL  string         `json:"company_url,omitempty"`
	Location    string         `json:"location,omitempty"`
	Description JobDescription `json:"description"`
	PostedAt    *time.Time     `json:"posted_at,omitempty"`
	OwnerID     string         `json:"owner_id" badgerhold:"index"`
	CampaignID  string         `json:"campaign_id" badgerhold:"index"`
	Relevance   Relevance      `json:"relevance"`
	IsDeleted   bool           `json:"is_deleted"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Validate checks the required extracted fields. A job failing validation is
// discarded as corrupt; the scrape loop continues with the next card.
func (j *ScrapedJob) Validate() error {
	if strings.TrimSpace(j.Title) == "" || strings.TrimSpace(j.CompanyName) == "" {
		return ErrCorruptItem
	}
	if strings.TrimSpace(j.URL) == "" {
		return ErrCorruptItem
	}
	return nil
}

// ParsePostedTime converts a relative posted-time label ("2 days ago",
// "3 weeks ago", "1 month ago") to an absolute time anchored at now.
// Returns nil when the label is not recognized.
func ParsePostedTime(label string, now time.Time) *time.Time {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(label)))
	if len(fields) < 3 || fields[len(fields)-1] != "ago" {
		return nil
	}

	n := 0
	for _, r := range fields[0] {
		if r < '0' || r > '9' {
			return nil
		}
		n = n*10 + int(r-'0')
	}

	var d time.Duration
	switch strings.TrimSuffix(fields[1], "s") {
	case "minute":
		d = time.Duration(n) * time.Minute
	case "hour":
		d = time.Duration(n) * time.Hour
	case "day":
		d = time.Duration(n) * 24 * time.Hour
	case "week":
		d = time.Duration(n) * 7 * 24 * time.Hour
	case "month":
		d = time.Duration(n) * 30 * 24 * time.Hour
	default:
		return nil
	}

	t := now.Add(-d)
	return &t
}
