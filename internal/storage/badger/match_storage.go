package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// MatchStorage implements the MatchStorage interface for Badger. Records are
// keyed by the (owner, job) pair so a second write for the same pair updates
// the existing row instead of inserting a duplicate.
type MatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMatchStorage creates a new MatchStorage instance
func NewMatchStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MatchStorage {
	return &MatchStorage{db: db, logger: logger}
}

func (s *MatchStorage) UpsertMatch(ctx context.Context, match *models.MatchResult) (*models.MatchResult, error) {
	if match.OwnerID == "" || match.JobID == "" {
		return nil, fmt.Errorf("match owner and job IDs are required")
	}

	now := time.Now()
	existing, err := s.GetMatchByPair(ctx, match.OwnerID, match.JobID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		// Keep the original identity and creation time; refresh the verdict
		match.ID = existing.ID
		match.CreatedAt = existing.CreatedAt
	} else {
		if match.CreatedAt.IsZero() {
			match.CreatedAt = now
		}
	}
	match.UpdatedAt = now
	if match.TailoringStatus == "" {
		match.TailoringStatus = models.TailoringStatusPending
	}

	if err := s.db.Store().Upsert(match.PairKey(), match); err != nil {
		return nil, fmt.Errorf("failed to upsert match: %w", err)
	}
	return match, nil
}

func (s *MatchStorage) GetMatch(ctx context.Context, matchID string) (*models.MatchResult, error) {
	var matches []models.MatchResult
	if err := s.db.Store().Find(&matches, badgerhold.Where("ID").Eq(matchID).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if len(matches) == 0 {
		return nil, models.ErrNotFound
	}
	return &matches[0], nil
}

func (s *MatchStorage) GetMatchByPair(ctx context.Context, ownerID, jobID string) (*models.MatchResult, error) {
	var match models.MatchResult
	key := (&models.MatchResult{OwnerID: ownerID, JobID: jobID}).PairKey()
	if err := s.db.Store().Get(key, &match); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match by pair: %w", err)
	}
	return &match, nil
}

func (s *MatchStorage) UpdateTailoringStatus(ctx context.Context, matchID string, status models.TailoringStatus, artifactID string) error {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}

	match.TailoringStatus = status
	if artifactID != "" {
		match.ArtifactID = artifactID
	}
	match.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(match.PairKey(), match); err != nil {
		return fmt.Errorf("failed to update tailoring status: %w", err)
	}
	return nil
}

func (s *MatchStorage) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	count, err := s.db.Store().Count(&models.MatchResult{}, badgerhold.Where("CampaignID").Eq(campaignID))
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return int(count), nil
}

func (s *MatchStorage) CountPendingTailoring(ctx context.Context, campaignID string) (int, error) {
	count, err := s.db.Store().Count(&models.MatchResult{},
		badgerhold.Where("CampaignID").Eq(campaignID).
			And("TailoringStatus").In(models.TailoringStatusPending, models.TailoringStatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("failed to count pending tailoring: %w", err)
	}
	return int(count), nil
}
