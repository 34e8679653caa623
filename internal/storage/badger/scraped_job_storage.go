package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// ScrapedJobStorage implements the ScrapedJobStorage interface for Badger.
// Records are keyed by a hash of the posting URL so insertion doubles as the
// natural-key uniqueness check.
type ScrapedJobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScrapedJobStorage creates a new ScrapedJobStorage instance
func NewScrapedJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScrapedJobStorage {
	return &ScrapedJobStorage{db: db, logger: logger}
}

func (s *ScrapedJobStorage) InsertJob(ctx context.Context, job *models.ScrapedJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.Relevance == "" {
		job.Relevance = models.RelevancePending
	}

	// Keying by URL hash makes insert-if-absent atomic: a concurrent insert
	// for the same posting loses with ErrKeyExists instead of racing an
	// exists-check.
	if err := s.db.Store().Insert(common.URLKey(job.URL), job); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) || errors.Is(err, badgerhold.ErrUniqueExists) {
			return models.ErrDuplicateJob
		}
		return fmt.Errorf("failed to insert scraped job: %w", err)
	}
	return nil
}

func (s *ScrapedJobStorage) GetJob(ctx context.Context, jobID string) (*models.ScrapedJob, error) {
	var jobs []models.ScrapedJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("ID").Eq(jobID).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to get scraped job: %w", err)
	}
	if len(jobs) == 0 {
		return nil, models.ErrNotFound
	}
	return &jobs[0], nil
}

func (s *ScrapedJobStorage) GetJobByURL(ctx context.Context, url string) (*models.ScrapedJob, error) {
	var job models.ScrapedJob
	if err := s.db.Store().Get(common.URLKey(url), &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get scraped job by url: %w", err)
	}
	return &job, nil
}

func (s *ScrapedJobStorage) UpdateRelevance(ctx context.Context, jobID string, relevance models.Relevance) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Relevance = relevance
	if err := s.db.Store().Upsert(common.URLKey(job.URL), job); err != nil {
		return fmt.Errorf("failed to update relevance: %w", err)
	}
	return nil
}

func (s *ScrapedJobStorage) SoftDeleteIrrelevant(ctx context.Context, campaignID string) (int, error) {
	var jobs []models.ScrapedJob
	query := badgerhold.Where("CampaignID").Eq(campaignID).
		And("Relevance").Eq(models.RelevanceIrrelevant).
		And("IsDeleted").Eq(false)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return 0, fmt.Errorf("failed to find irrelevant jobs: %w", err)
	}

	count := 0
	for i := range jobs {
		jobs[i].IsDeleted = true
		if err := s.db.Store().Upsert(common.URLKey(jobs[i].URL), &jobs[i]); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobs[i].ID).Msg("Failed to soft-delete job")
			continue
		}
		count++
	}
	return count, nil
}

func (s *ScrapedJobStorage) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	count, err := s.db.Store().Count(&models.ScrapedJob{},
		badgerhold.Where("CampaignID").Eq(campaignID).And("IsDeleted").Eq(false))
	if err != nil {
		return 0, fmt.Errorf("failed to count scraped jobs: %w", err)
	}
	return int(count), nil
}
