package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
	"github.com/ternarybob/peto/internal/scraper"
	"github.com/ternarybob/peto/internal/services/campaigns"
)

// Worker consumes scrape missions: it drives the browser capability over a
// filtered listing, persists new jobs, and emits one match message per
// persisted job. Items fail individually; only a capability failure is fatal
// for the mission and its campaign.
type Worker struct {
	storage   interfaces.StorageManager
	queue     interfaces.QueueClient
	browser   interfaces.Scraper
	campaigns *campaigns.Service
	logger    arbor.ILogger
	validate  *validator.Validate

	// maxNoProgress bounds consecutive empty scroll results so a listing
	// that never signals end-of-list still terminates.
	maxNoProgress int
}

// NewWorker creates the scraper worker.
func NewWorker(storage interfaces.StorageManager, queue interfaces.QueueClient, browser interfaces.Scraper, campaignService *campaigns.Service, cfg *common.ScraperConfig, logger arbor.ILogger) *Worker {
	maxNoProgress := cfg.MaxNoProgress
	if maxNoProgress < 1 {
		maxNoProgress = 5
	}
	return &Worker{
		storage:       storage,
		queue:         queue,
		browser:       browser,
		campaigns:     campaignService,
		logger:        logger,
		validate:      validator.New(),
		maxNoProgress: maxNoProgress,
	}
}

// Run consumes scrape missions until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	return w.queue.Consume(ctx, models.QueueScrapeMissions, w.Handle, interfaces.ConsumeOptions{Prefetch: 1})
}

// Handle processes one scrape mission. The mission is acked in all outcomes
// except an undecodable payload, which is dropped as poison.
func (w *Worker) Handle(ctx context.Context, delivery *interfaces.Delivery) {
	var mission models.ScrapeMission
	if err := delivery.Message.DecodePayload(&mission); err != nil {
		w.logger.Error().Err(err).Str("message_id", delivery.ID).Msg("Undecodable scrape mission, dropping")
		w.settle(delivery.Nack, false)
		return
	}
	if err := w.validate.Struct(&mission); err != nil {
		w.logger.Error().Err(err).Str("message_id", delivery.ID).Msg("Invalid scrape mission, dropping")
		w.settle(delivery.Nack, false)
		return
	}

	// The mission is consumed whatever happens next; redelivering a scrape
	// pass that already failed or was cancelled helps nobody.
	defer func() {
		if err := delivery.Ack(); err != nil {
			w.logger.Warn().Err(err).Str("campaign_id", mission.CampaignID).Msg("Failed to ack scrape mission")
		}
	}()

	if !w.campaignActive(ctx, mission.CampaignID) {
		w.logger.Info().Str("campaign_id", mission.CampaignID).Msg("Campaign not running, skipping scrape mission")
		return
	}

	w.logger.Info().
		Str("campaign_id", mission.CampaignID).
		Str("target_role", mission.TargetRole).
		Str("target_location", mission.TargetLocation).
		Msg("Scrape mission started")

	session, err := w.browser.Search(ctx, mission.TargetRole, mission.TargetLocation)
	if err != nil {
		// Capability failure before any item was processed is fatal for the
		// campaign, not just this mission.
		if failErr := w.campaigns.Fail(ctx, mission.CampaignID, err); failErr != nil {
			w.logger.Error().Err(failErr).Str("campaign_id", mission.CampaignID).Msg("Failed to record fatal scrape error")
		}
		return
	}
	defer session.Close()

	persisted, duplicates, discarded := 0, 0, 0
	noProgress := 0

	for {
		if ctx.Err() != nil {
			return
		}
		// Cooperative cancellation checkpoint: one status read per page.
		if !w.campaignActive(ctx, mission.CampaignID) {
			w.logger.Info().
				Str("campaign_id", mission.CampaignID).
				Int("jobs_persisted", persisted).
				Msg("Campaign no longer running, ending scrape pass")
			return
		}

		cards, err := session.NextCards(ctx)
		if err != nil {
			if failErr := w.campaigns.Fail(ctx, mission.CampaignID, err); failErr != nil {
				w.logger.Error().Err(failErr).Str("campaign_id", mission.CampaignID).Msg("Failed to record fatal scrape error")
			}
			return
		}

		if len(cards) == 0 {
			noProgress++
			if noProgress >= w.maxNoProgress {
				break
			}
			continue
		}
		noProgress = 0

		for _, card := range cards {
			switch w.processCard(ctx, &mission, card) {
			case cardPersisted:
				persisted++
			case cardDuplicate:
				duplicates++
			case cardDiscarded:
				discarded++
			}
		}
	}

	w.logger.Info().
		Str("campaign_id", mission.CampaignID).
		Int("jobs_persisted", persisted).
		Int("duplicates", duplicates).
		Int("discarded", discarded).
		Msg("Scrape mission finished")
}

type cardOutcome int

const (
	cardPersisted cardOutcome = iota
	cardDuplicate
	cardDiscarded
)

// processCard validates, persists, and forwards one listing card. Failures
// here are contained to the item.
func (w *Worker) processCard(ctx context.Context, mission *models.ScrapeMission, card interfaces.JobCard) cardOutcome {
	markdown, err := scraper.NormalizeDescription(card.DescriptionHTML, card.PostingURL)
	if err != nil {
		w.logger.Warn().
			Err(err).
			Str("url", card.PostingURL).
			Str("campaign_id", mission.CampaignID).
			Msg("Description normalization failed, keeping job without description")
		markdown = ""
	}

	job := &models.ScrapedJob{
		ID:          common.NewJobID(),
		URL:         card.PostingURL,
		Title:       card.Title,
		CompanyName: card.CompanyName,
		CompanyURL:  card.CompanyURL,
		Location:    card.Location,
		Description: models.JobDescription{Markdown: markdown},
		PostedAt:    models.ParsePostedTime(card.PostedLabel, time.Now().UTC()),
		OwnerID:     mission.OwnerID,
		CampaignID:  mission.CampaignID,
		Relevance:   models.RelevancePending,
		CreatedAt:   time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		w.logger.Warn().
			Str("url", card.PostingURL).
			Str("title", card.Title).
			Str("campaign_id", mission.CampaignID).
			Msg("Discarding corrupt listing item")
		return cardDiscarded
	}

	if err := w.storage.ScrapedJobStorage().InsertJob(ctx, job); err != nil {
		if errors.Is(err, models.ErrDuplicateJob) {
			w.logger.Trace().Str("url", card.PostingURL).Msg("Duplicate posting suppressed")
			return cardDuplicate
		}
		w.logger.Error().
			Err(err).
			Str("url", card.PostingURL).
			Str("campaign_id", mission.CampaignID).
			Msg("Failed to persist scraped job")
		return cardDiscarded
	}

	msg, err := models.NewQueueMessage("match_job", models.MatchJob{
		JobID:      job.ID,
		CampaignID: mission.CampaignID,
		OwnerID:    mission.OwnerID,
		ResumeID:   mission.ResumeID,
	})
	if err == nil {
		err = w.queue.Publish(ctx, models.QueueMatchJobs, msg)
	}
	if err != nil {
		// The job row exists; the matcher will never hear about it. Logged
		// with full context so the gap is visible.
		w.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("campaign_id", mission.CampaignID).
			Msg("Failed to publish match message for scraped job")
	}

	return cardPersisted
}

func (w *Worker) campaignActive(ctx context.Context, campaignID string) bool {
	campaign, err := w.storage.CampaignStorage().GetCampaign(ctx, campaignID)
	if err != nil {
		w.logger.Warn().Err(err).Str("campaign_id", campaignID).Msg("Failed to load campaign for status check")
		return false
	}
	return campaign.Active()
}

// settle drops a delivery without requeue, logging a failed settle.
func (w *Worker) settle(nack func(bool) error, requeue bool) {
	if err := nack(requeue); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to nack delivery")
	}
}
