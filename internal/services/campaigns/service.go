package campaigns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// Service is the campaign control surface: launch, stop, status. It owns all
// campaign status writes (workers only read status) and publishes the scrape
// missions that seed the pipeline.
type Service struct {
	storage interfaces.StorageManager
	queue   interfaces.QueueClient
	logger  arbor.ILogger
}

// NewService creates the campaign controller.
func NewService(storage interfaces.StorageManager, queue interfaces.QueueClient, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		queue:   queue,
		logger:  logger,
	}
}

// Launch creates a running campaign for the owner and fans out instances.Scrapers
// identical scrape missions. At most one campaign per owner may be running;
// a second launch returns models.ErrConflict and publishes nothing.
func (s *Service) Launch(ctx context.Context, ownerID, targetRole, targetLocation, resumeID string, instances models.InstanceCounts) (*models.Campaign, error) {
	if ownerID == "" || targetRole == "" || resumeID == "" {
		return nil, fmt.Errorf("owner, target role, and resume are required to launch a campaign")
	}

	// Check-then-insert, not a store constraint. A concurrent launch race can
	// slip two running campaigns through; workers tolerate that.
	existing, err := s.storage.CampaignStorage().GetRunningCampaign(ctx, ownerID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for running campaign: %w", err)
	}
	if existing != nil {
		s.logger.Warn().
			Str("owner_id", ownerID).
			Str("campaign_id", existing.ID).
			Msg("Launch rejected, owner already has a running campaign")
		return nil, models.ErrConflict
	}

	if _, err := s.storage.ResumeStorage().GetResume(ctx, resumeID); err != nil {
		return nil, fmt.Errorf("resume %s not found: %w", resumeID, err)
	}

	campaign := &models.Campaign{
		ID:             common.NewCampaignID(),
		OwnerID:        ownerID,
		TargetRole:     targetRole,
		TargetLocation: targetLocation,
		ResumeID:       resumeID,
		Status:         models.CampaignStatusRunning,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.storage.CampaignStorage().SaveCampaign(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to save campaign: %w", err)
	}

	scrapers := instances.Scrapers
	if scrapers < 1 {
		scrapers = 1
	}

	mission := models.ScrapeMission{
		CampaignID:     campaign.ID,
		OwnerID:        ownerID,
		TargetRole:     targetRole,
		TargetLocation: targetLocation,
		ResumeID:       resumeID,
	}
	msg, err := models.NewQueueMessage("scrape_mission", mission)
	if err != nil {
		return nil, err
	}

	// N identical missions model N workers pulling from the same mission.
	// A partial failure here leaves the campaign running with fewer
	// instances, which is degraded but correct.
	published := 0
	for i := 0; i < scrapers; i++ {
		if err := s.queue.Publish(ctx, models.QueueScrapeMissions, msg); err != nil {
			s.logger.Error().
				Err(err).
				Str("campaign_id", campaign.ID).
				Int("published", published).
				Int("requested", scrapers).
				Msg("Failed to publish scrape mission")
			if published == 0 {
				if stErr := s.storage.CampaignStorage().UpdateStatus(ctx, campaign.ID, models.CampaignStatusFailed, err.Error()); stErr != nil {
					s.logger.Error().Err(stErr).Str("campaign_id", campaign.ID).Msg("Failed to mark campaign failed")
				}
				return nil, fmt.Errorf("failed to publish scrape missions: %w", err)
			}
			break
		}
		published++
	}

	s.logger.Info().
		Str("campaign_id", campaign.ID).
		Str("owner_id", ownerID).
		Str("target_role", targetRole).
		Str("target_location", targetLocation).
		Int("scrape_missions", published).
		Msg("Campaign launched")

	return campaign, nil
}

// Stop requests cooperative cancellation of an owner's campaign. In-flight
// work items complete; workers observe the status at checkpoint boundaries
// and stop pulling new work. Stopping a non-running campaign is a no-op.
func (s *Service) Stop(ctx context.Context, ownerID, campaignID string) (*models.Campaign, error) {
	campaign, err := s.storage.CampaignStorage().GetCampaignForOwner(ctx, campaignID, ownerID)
	if err != nil {
		return nil, err
	}

	if campaign.Status != models.CampaignStatusRunning {
		s.logger.Debug().
			Str("campaign_id", campaignID).
			Str("status", string(campaign.Status)).
			Msg("Stop requested for non-running campaign, no-op")
		return campaign, nil
	}

	if err := s.storage.CampaignStorage().UpdateStatus(ctx, campaignID, models.CampaignStatusStopped, ""); err != nil {
		return nil, fmt.Errorf("failed to stop campaign: %w", err)
	}
	campaign.Status = models.CampaignStatusStopped
	now := time.Now().UTC()
	campaign.StoppedAt = &now

	s.logger.Info().
		Str("campaign_id", campaignID).
		Str("owner_id", ownerID).
		Msg("Campaign stop requested")

	return campaign, nil
}

// Status computes the per-stage progress report for an owner's campaign.
// Counts are independent queries, not running counters: eventually consistent
// while workers are mid-flight, exact once the pipeline drains.
func (s *Service) Status(ctx context.Context, ownerID, campaignID string) (*models.CampaignStatusReport, error) {
	campaign, err := s.storage.CampaignStorage().GetCampaignForOwner(ctx, campaignID, ownerID)
	if err != nil {
		return nil, err
	}

	scraped, err := s.storage.ScrapedJobStorage().CountByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count scraped jobs: %w", err)
	}
	matched, err := s.storage.MatchStorage().CountByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}
	tailored, err := s.storage.TailoredStorage().CountSuccessfulByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tailored artifacts: %w", err)
	}

	// "Matched" reports matches still awaiting a successful artifact, so the
	// three numbers read as a funnel.
	pending := matched - tailored
	if pending < 0 {
		pending = 0
	}

	return &models.CampaignStatusReport{
		CampaignID:   campaign.ID,
		Status:       campaign.Status,
		JobsScraped:  scraped,
		JobsMatched:  pending,
		JobsTailored: tailored,
		TotalMatched: matched,
	}, nil
}

// Fail marks a campaign failed with the fatal error that killed it. Called by
// the scraper worker when a mission dies on a non-recoverable error.
func (s *Service) Fail(ctx context.Context, campaignID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.storage.CampaignStorage().UpdateStatus(ctx, campaignID, models.CampaignStatusFailed, msg); err != nil {
		return fmt.Errorf("failed to mark campaign failed: %w", err)
	}
	s.logger.Error().
		Str("campaign_id", campaignID).
		Str("cause", msg).
		Msg("Campaign failed")
	return nil
}
