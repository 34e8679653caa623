package interfaces

import (
	"context"

	"github.com/ternarybob/peto/internal/models"
)

// CampaignStorage persists campaign identity, target parameters, and
// lifecycle status. The status field is the single cross-process shared
// mutable state workers read for cooperative cancellation.
type CampaignStorage interface {
	SaveCampaign(ctx context.Context, campaign *models.Campaign) error
	GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error)
	// GetCampaignForOwner returns the campaign only when it belongs to ownerID.
	GetCampaignForOwner(ctx context.Context, campaignID, ownerID string) (*models.Campaign, error)
	// GetRunningCampaign returns the owner's running campaign, or
	// models.ErrNotFound when none exists.
	GetRunningCampaign(ctx context.Context, ownerID string) (*models.Campaign, error)
	// UpdateStatus transitions a campaign's lifecycle status.
	UpdateStatus(ctx context.Context, campaignID string, status models.CampaignStatus, errMsg string) error
	ListCampaignsByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error)
}

// ScrapedJobStorage persists discovered jobs keyed by posting URL.
type ScrapedJobStorage interface {
	// InsertJob atomically inserts a job if no row with the same posting URL
	// exists. Returns models.ErrDuplicateJob on a natural-key collision; a
	// separate exists-check-then-insert would race between concurrent
	// scraper instances.
	InsertJob(ctx context.Context, job *models.ScrapedJob) error
	GetJob(ctx context.Context, jobID string) (*models.ScrapedJob, error)
	GetJobByURL(ctx context.Context, url string) (*models.ScrapedJob, error)
	UpdateRelevance(ctx context.Context, jobID string, relevance models.Relevance) error
	// SoftDeleteIrrelevant marks irrelevant jobs in a campaign as deleted,
	// preserving rows for audit. Returns the number of rows flagged.
	SoftDeleteIrrelevant(ctx context.Context, campaignID string) (int, error)
	CountByCampaign(ctx context.Context, campaignID string) (int, error)
}

// MatchStorage persists analyzer verdicts keyed by (owner, job).
type MatchStorage interface {
	// UpsertMatch writes the result for its (owner, job) pair. A second
	// write for the same pair updates the existing row in place.
	UpsertMatch(ctx context.Context, match *models.MatchResult) (*models.MatchResult, error)
	GetMatch(ctx context.Context, matchID string) (*models.MatchResult, error)
	GetMatchByPair(ctx context.Context, ownerID, jobID string) (*models.MatchResult, error)
	UpdateTailoringStatus(ctx context.Context, matchID string, status models.TailoringStatus, artifactID string) error
	CountByCampaign(ctx context.Context, campaignID string) (int, error)
	CountPendingTailoring(ctx context.Context, campaignID string) (int, error)
}

// TailoredStorage persists tailored-resume artifacts.
type TailoredStorage interface {
	// UpsertArtifact writes the artifact for its match, replacing any prior
	// artifact for the same match (idempotent re-tailoring).
	UpsertArtifact(ctx context.Context, artifact *models.TailoredResume) (*models.TailoredResume, error)
	GetArtifact(ctx context.Context, artifactID string) (*models.TailoredResume, error)
	GetArtifactByMatch(ctx context.Context, matchID string) (*models.TailoredResume, error)
	CountSuccessfulByCampaign(ctx context.Context, campaignID string) (int, error)
}

// ResumeStorage persists candidate resume profiles and their cached
// analyzer blueprints.
type ResumeStorage interface {
	SaveResume(ctx context.Context, resume *models.Resume) error
	GetResume(ctx context.Context, resumeID string) (*models.Resume, error)
	// SaveBlueprint memoizes the analyzer-produced blueprint on the resume.
	SaveBlueprint(ctx context.Context, resumeID string, blueprint *models.ResumeBlueprint) error
}

// StorageManager aggregates the stores behind one lifecycle.
type StorageManager interface {
	CampaignStorage() CampaignStorage
	ScrapedJobStorage() ScrapedJobStorage
	MatchStorage() MatchStorage
	TailoredStorage() TailoredStorage
	ResumeStorage() ResumeStorage
	Close() error
}
