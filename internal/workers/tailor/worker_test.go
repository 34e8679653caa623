package tailor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
	"github.com/ternarybob/peto/internal/queue"
	"github.com/ternarybob/peto/internal/renderer"
	"github.com/ternarybob/peto/internal/storage/badger"
)

type fakeAnalyzer struct {
	tailorErr   error
	tailorCalls int
}

func (f *fakeAnalyzer) ParseJobDescription(_ context.Context, markdown string) (*models.JobDescription, error) {
	return &models.JobDescription{Markdown: markdown}, nil
}

func (f *fakeAnalyzer) SummarizeResume(_ context.Context, _ *models.Resume) (*models.ResumeBlueprint, error) {
	return &models.ResumeBlueprint{Summary: "Engineer."}, nil
}

func (f *fakeAnalyzer) InferPriorities(_ context.Context, _ *models.JobDescription) (*models.PrioritiesBlueprint, error) {
	return &models.PrioritiesBlueprint{}, nil
}

func (f *fakeAnalyzer) Decide(_ context.Context, _ *models.JobDescription, _ models.ResumeBlueprint, _ models.PrioritiesBlueprint) (*interfaces.Verdict, error) {
	return &interfaces.Verdict{Report: models.MatchReport{Recommendation: models.RecommendationHire}}, nil
}

func (f *fakeAnalyzer) Tailor(_ context.Context, _ *models.Resume, _ *models.JobDescription, _ *interfaces.Verdict) (*interfaces.TailoredContent, error) {
	f.tailorCalls++
	if f.tailorErr != nil {
		return nil, f.tailorErr
	}
	return &interfaces.TailoredContent{
		Sections: map[string]string{"summary": "Tailored summary.", "experience": "Tailored experience."},
		Analysis: models.GapAnalysis{Strengths: []string{"Go"}},
	}, nil
}

type fixture struct {
	worker   *Worker
	storage  interfaces.StorageManager
	queue    interfaces.QueueClient
	analyzer *fakeAnalyzer
	campaign *models.Campaign
	resume   *models.Resume
	job      *models.ScrapedJob
	match    *models.MatchResult
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := arbor.NewLogger()

	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(dir, "store")})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	qc := queue.NewClient(queue.Config{Path: filepath.Join(dir, "queue")}, logger)
	require.NoError(t, qc.Open())
	t.Cleanup(func() { qc.Close() })
	require.NoError(t, qc.DeclareQueue(models.QueueTailorMissions))

	ctx := context.Background()
	resume := &models.Resume{
		ID:       common.NewResumeID(),
		OwnerID:  "owner_1",
		Name:     "Test Candidate",
		Sections: map[string]string{"summary": "Engineer."},
	}
	require.NoError(t, storage.ResumeStorage().SaveResume(ctx, resume))

	campaign := &models.Campaign{
		ID:         common.NewCampaignID(),
		OwnerID:    "owner_1",
		TargetRole: "Engineer",
		ResumeID:   resume.ID,
		Status:     models.CampaignStatusRunning,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, storage.CampaignStorage().SaveCampaign(ctx, campaign))

	job := &models.ScrapedJob{
		ID:          common.NewJobID(),
		URL:         "https://example.com/jobs/1",
		Title:       "Engineer",
		CompanyName: "Acme",
		OwnerID:     "owner_1",
		CampaignID:  campaign.ID,
		Description: models.JobDescription{Markdown: "# Engineer\nGo required."},
		Relevance:   models.RelevanceRelevant,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, storage.ScrapedJobStorage().InsertJob(ctx, job))

	match, err := storage.MatchStorage().UpsertMatch(ctx, &models.MatchResult{
		ID:              common.NewMatchID(),
		OwnerID:         "owner_1",
		JobID:           job.ID,
		CampaignID:      campaign.ID,
		ResumeID:        resume.ID,
		Confidence:      0.9,
		Report:          models.MatchReport{Recommendation: models.RecommendationHire},
		TailoringStatus: models.TailoringStatusPending,
	})
	require.NoError(t, err)

	analyzer := &fakeAnalyzer{}
	docs := renderer.NewPDFRenderer(&common.DocsConfig{Dir: filepath.Join(dir, "docs")}, logger)
	worker := NewWorker(storage, qc, analyzer, docs, logger)

	return &fixture{
		worker:   worker,
		storage:  storage,
		queue:    qc,
		analyzer: analyzer,
		campaign: campaign,
		resume:   resume,
		job:      job,
		match:    match,
	}
}

func (f *fixture) deliver(t *testing.T) *interfaces.Delivery {
	t.Helper()
	ctx := context.Background()
	msg, err := models.NewQueueMessage("tailor_mission", models.TailorMission{
		JobID:      f.job.ID,
		MatchID:    f.match.ID,
		CampaignID: f.campaign.ID,
		ResumeID:   f.resume.ID,
	})
	require.NoError(t, err)
	require.NoError(t, f.queue.Publish(ctx, models.QueueTailorMissions, msg))

	delivery, err := f.queue.Receive(ctx, models.QueueTailorMissions)
	require.NoError(t, err)
	return delivery
}

func TestHandleProducesArtifactAndCompletesMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.worker.Handle(ctx, f.deliver(t))

	artifact, err := f.storage.TailoredStorage().GetArtifactByMatch(ctx, f.match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TailoredStatusSuccess, artifact.Status)
	assert.Equal(t, "Tailored summary.", artifact.Sections["summary"])
	assert.NotEmpty(t, artifact.DocumentPath)
	assert.FileExists(t, artifact.DocumentPath)

	match, err := f.storage.MatchStorage().GetMatch(ctx, f.match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TailoringStatusCompleted, match.TailoringStatus)
	assert.Equal(t, artifact.ID, match.ArtifactID)

	depth, err := f.queue.Depth(ctx, models.QueueTailorMissions)
	require.NoError(t, err)
	assert.Equal(t, 0, depth, "mission acknowledged")
}

func TestHandleRecordsFailedPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.analyzer.tailorErr = assert.AnError

	f.worker.Handle(ctx, f.deliver(t))

	artifact, err := f.storage.TailoredStorage().GetArtifactByMatch(ctx, f.match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TailoredStatusFailed, artifact.Status)
	assert.Equal(t, assert.AnError.Error(), artifact.Error)
	assert.Empty(t, artifact.DocumentPath)

	match, err := f.storage.MatchStorage().GetMatch(ctx, f.match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TailoringStatusFailed, match.TailoringStatus)

	// A failed pass is terminal, not retried.
	depth, err := f.queue.Depth(ctx, models.QueueTailorMissions)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestHandleDropsPoisonMission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.queue.Publish(ctx, models.QueueTailorMissions, models.QueueMessage{
		Type:    "tailor_mission",
		Payload: []byte(`{"match_id":""}`),
	}))
	delivery, err := f.queue.Receive(ctx, models.QueueTailorMissions)
	require.NoError(t, err)

	f.worker.Handle(ctx, delivery)

	assert.Equal(t, 0, f.analyzer.tailorCalls)
	depth, err := f.queue.Depth(ctx, models.QueueTailorMissions)
	require.NoError(t, err)
	assert.Equal(t, 0, depth, "poison mission dropped without requeue")
}

func TestHandleSkipsStoppedCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	delivery := f.deliver(t)

	require.NoError(t, f.storage.CampaignStorage().UpdateStatus(ctx, f.campaign.ID, models.CampaignStatusStopped, ""))

	f.worker.Handle(ctx, delivery)

	assert.Equal(t, 0, f.analyzer.tailorCalls)
	match, err := f.storage.MatchStorage().GetMatch(ctx, f.match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TailoringStatusPending, match.TailoringStatus)
}

func TestHandleSkipsCompletedMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.storage.MatchStorage().UpdateTailoringStatus(ctx, f.match.ID, models.TailoringStatusCompleted, "artifact_existing"))

	f.worker.Handle(ctx, f.deliver(t))

	assert.Equal(t, 0, f.analyzer.tailorCalls, "finished match is not re-tailored")
	match, err := f.storage.MatchStorage().GetMatch(ctx, f.match.ID)
	require.NoError(t, err)
	assert.Equal(t, "artifact_existing", match.ArtifactID)
}
