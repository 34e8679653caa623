package campaigns

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/models"
)

func newSweeperFixture(t *testing.T) (*fixture, *Sweeper) {
	t.Helper()
	f := newFixture(t)
	sweeper := NewSweeper(f.storage, f.queue, &common.CampaignConfig{StableSweeps: 3}, arbor.NewLogger())
	return f, sweeper
}

func TestSweeperCompletesDrainedCampaign(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()
	resume := f.saveResume(t, "owner_1")

	campaign, err := f.service.Launch(ctx, "owner_1", "Engineer", "", resume.ID, models.InstanceCounts{Scrapers: 1})
	require.NoError(t, err)

	// Drain the launch mission so the queues are empty.
	delivery, err := f.queue.Receive(ctx, models.QueueScrapeMissions)
	require.NoError(t, err)
	require.NoError(t, delivery.Ack())

	// First sweep establishes the baseline, the next stableSweeps confirm it.
	for i := 0; i < 4; i++ {
		sweeper.Sweep(ctx)
	}

	reloaded, err := f.storage.CampaignStorage().GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
}

func TestSweeperWaitsForStableCounts(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()
	resume := f.saveResume(t, "owner_1")

	campaign, err := f.service.Launch(ctx, "owner_1", "Engineer", "", resume.ID, models.InstanceCounts{Scrapers: 1})
	require.NoError(t, err)

	delivery, err := f.queue.Receive(ctx, models.QueueScrapeMissions)
	require.NoError(t, err)
	require.NoError(t, delivery.Ack())

	sweeper.Sweep(ctx)
	sweeper.Sweep(ctx)

	// Progress between sweeps resets the stability counter.
	require.NoError(t, f.storage.ScrapedJobStorage().InsertJob(ctx, &models.ScrapedJob{
		ID:          common.NewJobID(),
		URL:         "https://example.com/jobs/late-arrival",
		Title:       "Engineer",
		CompanyName: "Acme",
		OwnerID:     "owner_1",
		CampaignID:  campaign.ID,
		CreatedAt:   time.Now().UTC(),
	}))

	sweeper.Sweep(ctx)
	sweeper.Sweep(ctx)

	reloaded, err := f.storage.CampaignStorage().GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusRunning, reloaded.Status, "two stable sweeps after progress is below the threshold")

	sweeper.Sweep(ctx)
	sweeper.Sweep(ctx)

	reloaded, err = f.storage.CampaignStorage().GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
}

func TestSweeperIgnoresCampaignsWithQueuedWork(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()
	resume := f.saveResume(t, "owner_1")

	// The unacked launch mission keeps queue depth at 1.
	campaign, err := f.service.Launch(ctx, "owner_1", "Engineer", "", resume.ID, models.InstanceCounts{Scrapers: 1})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		sweeper.Sweep(ctx)
	}

	reloaded, err := f.storage.CampaignStorage().GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusRunning, reloaded.Status)
}

func TestSweeperSkipsStoppedCampaigns(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()
	resume := f.saveResume(t, "owner_1")

	campaign, err := f.service.Launch(ctx, "owner_1", "Engineer", "", resume.ID, models.InstanceCounts{Scrapers: 1})
	require.NoError(t, err)
	_, err = f.service.Stop(ctx, "owner_1", campaign.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		sweeper.Sweep(ctx)
	}

	reloaded, err := f.storage.CampaignStorage().GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusStopped, reloaded.Status, "sweeper only completes running campaigns")
}
