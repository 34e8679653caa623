package common

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewCampaignID generates a unique campaign ID with the "campaign_" prefix
func NewCampaignID() string {
	return "campaign_" + uuid.New().String()
}

// NewJobID generates a unique scraped-job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewMatchID generates a unique match ID with the "match_" prefix
func NewMatchID() string {
	return "match_" + uuid.New().String()
}

// NewArtifactID generates a unique tailored-artifact ID with the "tailored_" prefix
func NewArtifactID() string {
	return "tailored_" + uuid.New().String()
}

// NewResumeID generates a unique resume ID with the "resume_" prefix
func NewResumeID() string {
	return "resume_" + uuid.New().String()
}

// URLKey derives a stable store key from a posting URL. Hashing keeps keys
// bounded regardless of URL length.
func URLKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "url_" + hex.EncodeToString(sum[:])
}
