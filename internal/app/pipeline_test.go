package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
	"github.com/ternarybob/peto/internal/queue"
	"github.com/ternarybob/peto/internal/renderer"
	"github.com/ternarybob/peto/internal/services/campaigns"
	"github.com/ternarybob/peto/internal/storage/badger"
	matcherworker "github.com/ternarybob/peto/internal/workers/matcher"
	scraperworker "github.com/ternarybob/peto/internal/workers/scraper"
	tailorworker "github.com/ternarybob/peto/internal/workers/tailor"
)

// scriptedAnalyzer scripts match decisions per job markdown and fails
// tailoring from a given call onward.
type scriptedAnalyzer struct {
	recommendations map[string]models.Recommendation
	tailorFailFrom  int
	tailorCalls     int
}

func (s *scriptedAnalyzer) ParseJobDescription(_ context.Context, markdown string) (*models.JobDescription, error) {
	return &models.JobDescription{Summary: markdown, Markdown: markdown}, nil
}

func (s *scriptedAnalyzer) SummarizeResume(_ context.Context, _ *models.Resume) (*models.ResumeBlueprint, error) {
	return &models.ResumeBlueprint{Summary: "Engineer.", Seniority: "senior"}, nil
}

func (s *scriptedAnalyzer) InferPriorities(_ context.Context, _ *models.JobDescription) (*models.PrioritiesBlueprint, error) {
	return &models.PrioritiesBlueprint{}, nil
}

func (s *scriptedAnalyzer) Decide(_ context.Context, desc *models.JobDescription, _ models.ResumeBlueprint, _ models.PrioritiesBlueprint) (*interfaces.Verdict, error) {
	rec, ok := s.recommendations[desc.Summary]
	if !ok {
		rec = models.RecommendationReject
	}
	return &interfaces.Verdict{Report: models.MatchReport{Recommendation: rec}, Reasoning: "scripted"}, nil
}

func (s *scriptedAnalyzer) Tailor(_ context.Context, _ *models.Resume, _ *models.JobDescription, _ *interfaces.Verdict) (*interfaces.TailoredContent, error) {
	s.tailorCalls++
	if s.tailorFailFrom > 0 && s.tailorCalls >= s.tailorFailFrom {
		return nil, assert.AnError
	}
	return &interfaces.TailoredContent{Sections: map[string]string{"summary": "Tailored."}}, nil
}

type scriptedSession struct {
	pages [][]interfaces.JobCard
	calls int
}

func (s *scriptedSession) NextCards(_ context.Context) ([]interfaces.JobCard, error) {
	s.calls++
	if s.calls > len(s.pages) {
		return nil, nil
	}
	return s.pages[s.calls-1], nil
}

func (s *scriptedSession) Close() error { return nil }

type scriptedScraper struct{ session *scriptedSession }

func (s *scriptedScraper) Search(_ context.Context, _, _ string) (interfaces.ListingSession, error) {
	return s.session, nil
}

func (s *scriptedScraper) Close() error { return nil }

func listingCard(url, title, markdownTag string) interfaces.JobCard {
	return interfaces.JobCard{
		PostingURL:      url,
		Title:           title,
		CompanyName:     "Acme",
		Location:        "Remote",
		DescriptionHTML: "<p>" + markdownTag + "</p>",
	}
}

// TestPipelineEndToEnd drives one campaign through all three stages against
// real storage and queue: four listing cards (one duplicate) become three
// jobs, three decisions gate two tailoring passes, one of which fails, and
// the status report's funnel counts stay conserved throughout.
func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	logger := arbor.NewLogger()
	ctx := context.Background()

	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(dir, "store")})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	qc := queue.NewClient(queue.Config{Path: filepath.Join(dir, "queue")}, logger)
	require.NoError(t, qc.Open())
	t.Cleanup(func() { qc.Close() })
	for _, q := range []string{models.QueueScrapeMissions, models.QueueMatchJobs, models.QueueTailorMissions} {
		require.NoError(t, qc.DeclareQueue(q))
	}

	resume := &models.Resume{
		ID:       common.NewResumeID(),
		OwnerID:  "owner_1",
		Name:     "Test Candidate",
		Sections: map[string]string{"summary": "Engineer."},
	}
	require.NoError(t, storage.ResumeStorage().SaveResume(ctx, resume))

	campaignService := campaigns.NewService(storage, qc, logger)
	campaign, err := campaignService.Launch(ctx, "owner_1", "Staff Engineer", "Remote", resume.ID, models.InstanceCounts{Scrapers: 1})
	require.NoError(t, err)

	// Stage 1: scrape. Four cards, one a duplicate posting.
	session := &scriptedSession{pages: [][]interfaces.JobCard{{
		listingCard("https://jobs.example.com/postings/1", "Staff Engineer", "job:hire"),
		listingCard("https://jobs.example.com/postings/2", "Platform Engineer", "job:interview"),
		listingCard("https://jobs.example.com/postings/3", "Manager", "job:reject"),
		listingCard("https://jobs.example.com/postings/1", "Staff Engineer", "job:hire"),
	}}}
	analyzer := &scriptedAnalyzer{
		recommendations: map[string]models.Recommendation{
			"job:hire":      models.RecommendationHire,
			"job:interview": models.RecommendationInterview,
			"job:reject":    models.RecommendationReject,
		},
		tailorFailFrom: 2,
	}

	scrapeWorker := scraperworker.NewWorker(storage, qc, &scriptedScraper{session: session}, campaignService, &common.ScraperConfig{MaxNoProgress: 1}, logger)
	mission, err := qc.Receive(ctx, models.QueueScrapeMissions)
	require.NoError(t, err)
	scrapeWorker.Handle(ctx, mission)

	scraped, err := storage.ScrapedJobStorage().CountByCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, scraped, "duplicate posting suppressed")

	// Stage 2: match. One batch of three decisions.
	matchWorker := matcherworker.NewWorker(storage, qc, analyzer, &common.WorkersConfig{MatcherBatchSize: 5, MatcherBatchTimeout: "60s"}, logger)
	var batch []*interfaces.Delivery
	for i := 0; i < 3; i++ {
		d, err := qc.Receive(ctx, models.QueueMatchJobs)
		require.NoError(t, err)
		batch = append(batch, d)
	}
	matchWorker.ProcessBatch(ctx, batch)

	matched, err := storage.MatchStorage().CountByCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, matched, "one match per job, REJECT included")

	tailorDepth, err := qc.Depth(ctx, models.QueueTailorMissions)
	require.NoError(t, err)
	require.Equal(t, 2, tailorDepth, "only positive decisions gate tailoring")

	// Stage 3: tailor. First mission succeeds, second fails terminally.
	docs := renderer.NewPDFRenderer(&common.DocsConfig{Dir: filepath.Join(dir, "docs")}, logger)
	tailorWorker := tailorworker.NewWorker(storage, qc, analyzer, docs, logger)
	for i := 0; i < 2; i++ {
		d, err := qc.Receive(ctx, models.QueueTailorMissions)
		require.NoError(t, err)
		tailorWorker.Handle(ctx, d)
	}

	successful, err := storage.TailoredStorage().CountSuccessfulByCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, successful)

	// Funnel report conservation: pending = total - tailored.
	report, err := campaignService.Status(ctx, "owner_1", campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.JobsScraped)
	assert.Equal(t, 3, report.TotalMatched)
	assert.Equal(t, 1, report.JobsTailored)
	assert.Equal(t, report.TotalMatched-report.JobsTailored, report.JobsMatched)

	// Every queue drained: nothing was left unsettled.
	for _, q := range []string{models.QueueScrapeMissions, models.QueueMatchJobs, models.QueueTailorMissions} {
		depth, err := qc.Depth(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 0, depth, q)
	}

	// With drained queues and stable counts, the sweeper completes the
	// campaign after its stability window.
	sweeper := campaigns.NewSweeper(storage, qc, &common.CampaignConfig{SweepSchedule: "@every 1m", StableSweeps: 2}, logger)
	for i := 0; i < 3; i++ {
		sweeper.Sweep(ctx)
	}
	final, err := storage.CampaignStorage().GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, final.Status)
}
