package campaigns

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// stageSnapshot is one sweep's observation of a campaign's pipeline.
type stageSnapshot struct {
	Scraped  int
	Matched  int
	Tailored int
	Depth    int
}

// Sweeper periodically checks running campaigns for completion. A campaign
// has no explicit "done" signal; it is complete when the queues are empty and
// the stage counts have been unchanged for stableSweeps consecutive sweeps.
type Sweeper struct {
	storage      interfaces.StorageManager
	queue        interfaces.QueueClient
	logger       arbor.ILogger
	cron         *cron.Cron
	schedule     string
	stableSweeps int

	mu     sync.Mutex
	seen   map[string]stageSnapshot
	stable map[string]int
}

// NewSweeper creates the completion sweeper. It does not start sweeping until
// Start is called.
func NewSweeper(storage interfaces.StorageManager, queue interfaces.QueueClient, cfg *common.CampaignConfig, logger arbor.ILogger) *Sweeper {
	schedule := cfg.SweepSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	stableSweeps := cfg.StableSweeps
	if stableSweeps < 1 {
		stableSweeps = 3
	}
	return &Sweeper{
		storage:      storage,
		queue:        queue,
		logger:       logger,
		cron:         cron.New(),
		schedule:     schedule,
		stableSweeps: stableSweeps,
		seen:         make(map[string]stageSnapshot),
		stable:       make(map[string]int),
	}
}

// Start registers the sweep on its cron schedule and begins sweeping.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Int("stable_sweeps", s.stableSweeps).
		Msg("Campaign completion sweeper started")
	return nil
}

// Stop halts the sweep schedule. Running sweeps finish.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep runs one completion pass over all running campaigns.
func (s *Sweeper) Sweep(ctx context.Context) {
	running, err := s.storage.CampaignStorage().ListCampaignsByStatus(ctx, models.CampaignStatusRunning)
	if err != nil {
		s.logger.Error().Err(err).Msg("Completion sweep failed to list running campaigns")
		return
	}

	// Drop tracking for campaigns that are no longer running.
	s.pruneTracking(running)

	if len(running) == 0 {
		return
	}

	depth := 0
	for _, q := range []string{models.QueueScrapeMissions, models.QueueMatchJobs, models.QueueTailorMissions} {
		d, err := s.queue.Depth(ctx, q)
		if err != nil {
			s.logger.Warn().Err(err).Str("queue", q).Msg("Completion sweep failed to read queue depth")
			return
		}
		depth += d
	}

	for _, campaign := range running {
		if err := s.sweepOne(ctx, campaign, depth); err != nil {
			s.logger.Error().Err(err).Str("campaign_id", campaign.ID).Msg("Completion sweep failed for campaign")
		}
	}
}

func (s *Sweeper) sweepOne(ctx context.Context, campaign *models.Campaign, queueDepth int) error {
	scraped, err := s.storage.ScrapedJobStorage().CountByCampaign(ctx, campaign.ID)
	if err != nil {
		return err
	}
	matched, err := s.storage.MatchStorage().CountByCampaign(ctx, campaign.ID)
	if err != nil {
		return err
	}
	tailored, err := s.storage.TailoredStorage().CountSuccessfulByCampaign(ctx, campaign.ID)
	if err != nil {
		return err
	}

	snapshot := stageSnapshot{Scraped: scraped, Matched: matched, Tailored: tailored, Depth: queueDepth}

	s.mu.Lock()
	prev, tracked := s.seen[campaign.ID]
	if tracked && prev == snapshot && queueDepth == 0 {
		s.stable[campaign.ID]++
	} else {
		s.stable[campaign.ID] = 0
	}
	s.seen[campaign.ID] = snapshot
	stableCount := s.stable[campaign.ID]
	s.mu.Unlock()

	s.logger.Trace().
		Str("campaign_id", campaign.ID).
		Int("scraped", scraped).
		Int("matched", matched).
		Int("tailored", tailored).
		Int("queue_depth", queueDepth).
		Int("stable_sweeps", stableCount).
		Msg("Completion sweep observed campaign")

	if stableCount < s.stableSweeps {
		return nil
	}

	if err := s.storage.CampaignStorage().UpdateStatus(ctx, campaign.ID, models.CampaignStatusCompleted, ""); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.seen, campaign.ID)
	delete(s.stable, campaign.ID)
	s.mu.Unlock()

	s.logger.Info().
		Str("campaign_id", campaign.ID).
		Int("jobs_scraped", scraped).
		Int("jobs_tailored", tailored).
		Msg("Campaign completed")
	return nil
}

func (s *Sweeper) pruneTracking(running []*models.Campaign) {
	active := make(map[string]bool, len(running))
	for _, c := range running {
		active[c.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.seen {
		if !active[id] {
			delete(s.seen, id)
			delete(s.stable, id)
		}
	}
}
