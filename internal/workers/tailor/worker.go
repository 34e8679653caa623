package tailor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// Worker consumes tailor missions one at a time. Tailoring is terminal per
// mission: the outcome is recorded on the match and as an artifact row whether
// the pass succeeds or fails, and the mission is acknowledged either way.
// Redelivering a failed tailoring pass would just replay the same analyzer
// failure; a relaunch re-emits the work instead.
type Worker struct {
	storage  interfaces.StorageManager
	queue    interfaces.QueueClient
	analyzer interfaces.AnalyzerService
	renderer interfaces.DocumentRenderer
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewWorker creates the tailor worker.
func NewWorker(storage interfaces.StorageManager, queueClient interfaces.QueueClient, analyzer interfaces.AnalyzerService, renderer interfaces.DocumentRenderer, logger arbor.ILogger) *Worker {
	return &Worker{
		storage:  storage,
		queue:    queueClient,
		analyzer: analyzer,
		renderer: renderer,
		logger:   logger,
		validate: validator.New(),
	}
}

// Run consumes tailor missions until ctx is done. Prefetch is one: each
// tailoring pass is two analyzer calls plus a render, and holding more
// in-flight missions only risks visibility-timeout redelivery.
func (w *Worker) Run(ctx context.Context) error {
	return w.queue.Consume(ctx, models.QueueTailorMissions, w.Handle, interfaces.ConsumeOptions{Prefetch: 1})
}

// Handle processes one tailor mission.
func (w *Worker) Handle(ctx context.Context, delivery *interfaces.Delivery) {
	var mission models.TailorMission
	if err := delivery.Message.DecodePayload(&mission); err != nil {
		w.logger.Error().Err(err).Str("message_id", delivery.ID).Msg("Undecodable tailor mission, dropping")
		w.settle(delivery.Nack(false))
		return
	}
	if err := w.validate.Struct(&mission); err != nil {
		w.logger.Error().Err(err).Str("message_id", delivery.ID).Msg("Invalid tailor mission, dropping")
		w.settle(delivery.Nack(false))
		return
	}

	defer func() { w.settle(delivery.Ack()) }()

	if err := w.process(ctx, &mission); err != nil {
		w.logger.Error().
			Err(err).
			Str("match_id", mission.MatchID).
			Str("campaign_id", mission.CampaignID).
			Msg("Tailoring pass failed")
		w.recordFailure(ctx, &mission, err)
	}
}

func (w *Worker) process(ctx context.Context, mission *models.TailorMission) error {
	campaign, err := w.storage.CampaignStorage().GetCampaign(ctx, mission.CampaignID)
	if err != nil {
		return fmt.Errorf("campaign %s not found: %w", mission.CampaignID, err)
	}
	if !campaign.Active() {
		w.logger.Debug().
			Str("match_id", mission.MatchID).
			Str("campaign_id", mission.CampaignID).
			Msg("Campaign not running, skipping tailor mission")
		return nil
	}

	match, err := w.storage.MatchStorage().GetMatch(ctx, mission.MatchID)
	if err != nil {
		return fmt.Errorf("match %s not found: %w", mission.MatchID, err)
	}
	if match.TailoringStatus == models.TailoringStatusCompleted {
		// Redelivered mission for a finished match; nothing to redo.
		w.logger.Debug().Str("match_id", match.ID).Msg("Match already tailored, skipping")
		return nil
	}

	if err := w.storage.MatchStorage().UpdateTailoringStatus(ctx, match.ID, models.TailoringStatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to mark match processing: %w", err)
	}

	job, err := w.storage.ScrapedJobStorage().GetJob(ctx, mission.JobID)
	if err != nil {
		return fmt.Errorf("scraped job %s not found: %w", mission.JobID, err)
	}
	resume, err := w.storage.ResumeStorage().GetResume(ctx, mission.ResumeID)
	if err != nil {
		return fmt.Errorf("resume %s not found: %w", mission.ResumeID, err)
	}

	verdict := &interfaces.Verdict{Report: match.Report, Reasoning: match.Reasoning}
	content, err := w.analyzer.Tailor(ctx, resume, &job.Description, verdict)
	if err != nil {
		return err
	}

	artifact := &models.TailoredResume{
		ID:         common.NewArtifactID(),
		OwnerID:    match.OwnerID,
		ResumeID:   resume.ID,
		JobID:      job.ID,
		MatchID:    match.ID,
		CampaignID: mission.CampaignID,
		Sections:   content.Sections,
		Status:     models.TailoredStatusPending,
		Analysis:   &content.Analysis,
		Prep:       content.Prep,
		CreatedAt:  time.Now().UTC(),
	}

	path, err := w.renderer.Render(ctx, artifact, resume)
	if err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	artifact.DocumentPath = path
	artifact.Status = models.TailoredStatusSuccess

	saved, err := w.storage.TailoredStorage().UpsertArtifact(ctx, artifact)
	if err != nil {
		return fmt.Errorf("failed to persist tailored artifact: %w", err)
	}
	if err := w.storage.MatchStorage().UpdateTailoringStatus(ctx, match.ID, models.TailoringStatusCompleted, saved.ID); err != nil {
		return fmt.Errorf("failed to mark match completed: %w", err)
	}

	w.logger.Info().
		Str("match_id", match.ID).
		Str("artifact_id", saved.ID).
		Str("document", path).
		Msg("Tailored resume produced")
	return nil
}

// recordFailure leaves a durable trace of the failed pass: a failed artifact
// row for the funnel report and a failed tailoring status on the match.
func (w *Worker) recordFailure(ctx context.Context, mission *models.TailorMission, cause error) {
	match, err := w.storage.MatchStorage().GetMatch(ctx, mission.MatchID)
	if err != nil {
		return
	}
	artifact := &models.TailoredResume{
		ID:         common.NewArtifactID(),
		OwnerID:    match.OwnerID,
		ResumeID:   mission.ResumeID,
		JobID:      mission.JobID,
		MatchID:    mission.MatchID,
		CampaignID: mission.CampaignID,
		Status:     models.TailoredStatusFailed,
		Error:      cause.Error(),
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := w.storage.TailoredStorage().UpsertArtifact(ctx, artifact); err != nil {
		w.logger.Warn().Err(err).Str("match_id", mission.MatchID).Msg("Failed to persist failed artifact")
	}
	if err := w.storage.MatchStorage().UpdateTailoringStatus(ctx, mission.MatchID, models.TailoringStatusFailed, ""); err != nil {
		w.logger.Warn().Err(err).Str("match_id", mission.MatchID).Msg("Failed to mark match failed")
	}
}

func (w *Worker) settle(err error) {
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to settle tailor delivery")
	}
}
