package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
	"github.com/ternarybob/peto/internal/queue"
)

// Worker consumes match messages in batches: each batch shares one memoized
// resume blueprint and produces one analyzer decision per job. The flush
// callback owns acknowledgement: ack-all when the batch completes, nack-all
// without requeue when a batch-level failure aborts it, requeue-all when
// shutdown interrupts it, each exactly once.
type Worker struct {
	storage  interfaces.StorageManager
	queue    interfaces.QueueClient
	analyzer interfaces.AnalyzerService
	logger   arbor.ILogger
	validate *validator.Validate

	batchSize    int
	batchTimeout time.Duration
}

// NewWorker creates the matcher worker.
func NewWorker(storage interfaces.StorageManager, queueClient interfaces.QueueClient, analyzer interfaces.AnalyzerService, cfg *common.WorkersConfig, logger arbor.ILogger) *Worker {
	batchSize := cfg.MatcherBatchSize
	if batchSize < 1 {
		batchSize = 5
	}
	return &Worker{
		storage:      storage,
		queue:        queueClient,
		analyzer:     analyzer,
		logger:       logger,
		validate:     validator.New(),
		batchSize:    batchSize,
		batchTimeout: common.ParseDuration(cfg.MatcherBatchTimeout, time.Minute),
	}
}

// Run consumes match messages into a size-or-timeout batcher until ctx is
// done. Prefetch equals the batch size so a full batch can accumulate while
// unacknowledged; the visibility timeout covers messages waiting in a batch.
func (w *Worker) Run(ctx context.Context) error {
	batcher := queue.NewBatcher(w.batchSize, w.batchTimeout, func(batch []*interfaces.Delivery) {
		w.ProcessBatch(ctx, batch)
	})
	return batcher.Run(ctx, w.queue, models.QueueMatchJobs, interfaces.ConsumeOptions{Prefetch: w.batchSize})
}

// settlement is the per-delivery outcome decided while processing a batch.
type settlement int

const (
	settleAck settlement = iota
	settleDrop
	settleRequeue
)

// ProcessBatch decides every job in the batch, then settles every delivery
// exactly once. Item-level containment: an undecodable message or missing
// job row drops that message alone. An analyzer failure after its retry
// budget aborts the batch; the whole batch is dropped without requeue so the
// pipeline keeps moving (upstream rows persist; relaunching re-emits work).
// Shutdown is not a failure: when the context is canceled the unprocessed
// remainder is requeued so valid messages survive for redelivery.
func (w *Worker) ProcessBatch(ctx context.Context, batch []*interfaces.Delivery) {
	if len(batch) == 0 {
		return
	}

	outcomes := make([]settlement, len(batch))
	jobs := make([]*models.MatchJob, len(batch))

	for i, delivery := range batch {
		var job models.MatchJob
		if err := delivery.Message.DecodePayload(&job); err != nil {
			w.logger.Error().Err(err).Str("message_id", delivery.ID).Msg("Undecodable match message, dropping")
			outcomes[i] = settleDrop
			continue
		}
		if err := w.validate.Struct(&job); err != nil {
			w.logger.Error().Err(err).Str("message_id", delivery.ID).Msg("Invalid match message, dropping")
			outcomes[i] = settleDrop
			continue
		}
		jobs[i] = &job
	}

	aborted := false
	requeue := false
	for i, job := range jobs {
		if job == nil {
			continue
		}
		if aborted {
			if requeue {
				outcomes[i] = settleRequeue
			} else {
				outcomes[i] = settleDrop
			}
			continue
		}
		if ctx.Err() != nil {
			// Shutdown mid-batch: the batcher flushes what it holds, but
			// nothing unprocessed may be consumed.
			w.logger.Info().
				Int("batch_size", len(batch)).
				Msg("Shutdown during batch, requeueing unprocessed match messages")
			outcomes[i] = settleRequeue
			aborted, requeue = true, true
			continue
		}

		if err := w.processItem(ctx, job); err != nil {
			if isItemError(err) {
				w.logger.Warn().
					Err(err).
					Str("job_id", job.JobID).
					Str("campaign_id", job.CampaignID).
					Msg("Dropping unprocessable match message")
				outcomes[i] = settleDrop
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info().
					Err(err).
					Str("job_id", job.JobID).
					Int("batch_size", len(batch)).
					Msg("Shutdown during batch, requeueing unprocessed match messages")
				outcomes[i] = settleRequeue
				aborted, requeue = true, true
				continue
			}
			// Batch-level failure: everything from here on is dropped
			// together so no delivery settles twice.
			w.logger.Error().
				Err(err).
				Str("job_id", job.JobID).
				Str("campaign_id", job.CampaignID).
				Int("batch_size", len(batch)).
				Msg("Batch aborted by analyzer failure")
			outcomes[i] = settleDrop
			aborted = true
		}
	}

	for i, delivery := range batch {
		var err error
		switch outcomes[i] {
		case settleAck:
			err = delivery.Ack()
		case settleDrop:
			err = delivery.Nack(false)
		case settleRequeue:
			err = delivery.Nack(true)
		}
		if err != nil {
			w.logger.Warn().Err(err).Str("message_id", delivery.ID).Msg("Failed to settle match delivery")
		}
	}
}

// itemError marks failures contained to one message.
type itemError struct{ err error }

func (e *itemError) Error() string { return e.err.Error() }
func (e *itemError) Unwrap() error { return e.err }

func isItemError(err error) bool {
	_, ok := err.(*itemError)
	return ok
}

// processItem runs the full decision protocol for one job.
func (w *Worker) processItem(ctx context.Context, job *models.MatchJob) error {
	campaign, err := w.storage.CampaignStorage().GetCampaign(ctx, job.CampaignID)
	if err != nil {
		return &itemError{fmt.Errorf("campaign %s not found: %w", job.CampaignID, err)}
	}
	if !campaign.Active() {
		// Deliberately consumed without a decision: the campaign was stopped
		// after this message was queued.
		w.logger.Debug().
			Str("job_id", job.JobID).
			Str("campaign_id", job.CampaignID).
			Msg("Campaign not running, skipping match message")
		return nil
	}

	scraped, err := w.storage.ScrapedJobStorage().GetJob(ctx, job.JobID)
	if err != nil {
		return &itemError{fmt.Errorf("scraped job %s not found: %w", job.JobID, err)}
	}

	blueprint, resume, err := w.resumeBlueprint(ctx, job.ResumeID)
	if err != nil {
		return fmt.Errorf("resume blueprint for %s: %w", job.ResumeID, err)
	}

	desc := &scraped.Description
	if desc.Summary == "" && desc.Markdown != "" {
		parsed, err := w.analyzer.ParseJobDescription(ctx, desc.Markdown)
		if err != nil {
			return err
		}
		desc = parsed
	}

	// Two-stage protocol: infer what the posting demands, apply the fixed
	// location-flexibility downgrade, then decide against the overridden
	// priorities. The override is identical for every decision call.
	priorities, err := w.analyzer.InferPriorities(ctx, desc)
	if err != nil {
		return err
	}
	overridden := models.OverrideLocationFlexibility(*priorities)

	verdict, err := w.analyzer.Decide(ctx, desc, blueprint.WithFlexibility(), overridden)
	if err != nil {
		return err
	}

	recommendation := verdict.Report.Recommendation
	match := &models.MatchResult{
		ID:              common.NewMatchID(),
		OwnerID:         job.OwnerID,
		JobID:           job.JobID,
		CampaignID:      job.CampaignID,
		ResumeID:        resume.ID,
		Confidence:      models.ConfidenceFor(recommendation),
		Reasoning:       verdict.Reasoning,
		Report:          verdict.Report,
		TailoringStatus: models.TailoringStatusPending,
	}
	saved, err := w.storage.MatchStorage().UpsertMatch(ctx, match)
	if err != nil {
		return fmt.Errorf("failed to persist match result: %w", err)
	}

	relevance := models.RelevanceRelevant
	if !recommendation.Positive() {
		relevance = models.RelevanceIrrelevant
	}
	if err := w.storage.ScrapedJobStorage().UpdateRelevance(ctx, job.JobID, relevance); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to update job relevance")
	}

	w.logger.Info().
		Str("job_id", job.JobID).
		Str("campaign_id", job.CampaignID).
		Str("recommendation", string(recommendation)).
		Float64("confidence", saved.Confidence).
		Msg("Match decided")

	// Only positive decisions gate a tailoring pass.
	if !recommendation.Positive() {
		return nil
	}

	msg, err := models.NewQueueMessage("tailor_mission", models.TailorMission{
		JobID:      job.JobID,
		MatchID:    saved.ID,
		CampaignID: job.CampaignID,
		ResumeID:   resume.ID,
	})
	if err != nil {
		return err
	}
	if err := w.queue.Publish(ctx, models.QueueTailorMissions, msg); err != nil {
		return fmt.Errorf("failed to publish tailor mission: %w", err)
	}
	return nil
}

// resumeBlueprint returns the memoized analyzer blueprint for a resume,
// generating and persisting it on first use. The blueprint is session-stable;
// one summarization serves every later decision.
func (w *Worker) resumeBlueprint(ctx context.Context, resumeID string) (models.ResumeBlueprint, *models.Resume, error) {
	resume, err := w.storage.ResumeStorage().GetResume(ctx, resumeID)
	if err != nil {
		return models.ResumeBlueprint{}, nil, err
	}
	if resume.Blueprint != nil {
		return *resume.Blueprint, resume, nil
	}

	blueprint, err := w.analyzer.SummarizeResume(ctx, resume)
	if err != nil {
		return models.ResumeBlueprint{}, nil, err
	}
	if err := w.storage.ResumeStorage().SaveBlueprint(ctx, resumeID, blueprint); err != nil {
		return models.ResumeBlueprint{}, nil, err
	}
	resume.Blueprint = blueprint

	w.logger.Info().Str("resume_id", resumeID).Msg("Resume blueprint memoized")
	return *blueprint, resume, nil
}
