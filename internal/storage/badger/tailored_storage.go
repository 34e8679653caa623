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

// TailoredStorage implements the TailoredStorage interface for Badger.
// Artifacts are keyed by match ID: re-tailoring the same match replaces the
// prior artifact instead of accumulating duplicates.
type TailoredStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTailoredStorage creates a new TailoredStorage instance
func NewTailoredStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TailoredStorage {
	return &TailoredStorage{db: db, logger: logger}
}

func (s *TailoredStorage) UpsertArtifact(ctx context.Context, artifact *models.TailoredResume) (*models.TailoredResume, error) {
	if artifact.MatchID == "" {
		return nil, fmt.Errorf("artifact match ID is required")
	}

	now := time.Now()
	existing, err := s.GetArtifactByMatch(ctx, artifact.MatchID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		artifact.ID = existing.ID
		artifact.CreatedAt = existing.CreatedAt
	} else if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = now
	}
	artifact.UpdatedAt = now

	if err := s.db.Store().Upsert(artifact.MatchID, artifact); err != nil {
		return nil, fmt.Errorf("failed to upsert tailored artifact: %w", err)
	}
	return artifact, nil
}

func (s *TailoredStorage) GetArtifact(ctx context.Context, artifactID string) (*models.TailoredResume, error) {
	var artifacts []models.TailoredResume
	if err := s.db.Store().Find(&artifacts, badgerhold.Where("ID").Eq(artifactID).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to get tailored artifact: %w", err)
	}
	if len(artifacts) == 0 {
		return nil, models.ErrNotFound
	}
	return &artifacts[0], nil
}

func (s *TailoredStorage) GetArtifactByMatch(ctx context.Context, matchID string) (*models.TailoredResume, error) {
	var artifact models.TailoredResume
	if err := s.db.Store().Get(matchID, &artifact); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get artifact by match: %w", err)
	}
	return &artifact, nil
}

func (s *TailoredStorage) CountSuccessfulByCampaign(ctx context.Context, campaignID string) (int, error) {
	count, err := s.db.Store().Count(&models.TailoredResume{},
		badgerhold.Where("CampaignID").Eq(campaignID).And("Status").Eq(models.TailoredStatusSuccess))
	if err != nil {
		return 0, fmt.Errorf("failed to count tailored artifacts: %w", err)
	}
	return int(count), nil
}
