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

// CampaignStorage implements the CampaignStorage interface for Badger
type CampaignStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCampaignStorage creates a new CampaignStorage instance
func NewCampaignStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CampaignStorage {
	return &CampaignStorage{db: db, logger: logger}
}

func (s *CampaignStorage) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == "" {
		return fmt.Errorf("campaign ID is required")
	}
	if err := s.db.Store().Upsert(campaign.ID, campaign); err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	return nil
}

func (s *CampaignStorage) GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.Store().Get(campaignID, &campaign); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (s *CampaignStorage) GetCampaignForOwner(ctx context.Context, campaignID, ownerID string) (*models.Campaign, error) {
	campaign, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	return campaign, nil
}

func (s *CampaignStorage) GetRunningCampaign(ctx context.Context, ownerID string) (*models.Campaign, error) {
	var campaigns []models.Campaign
	query := badgerhold.Where("OwnerID").Eq(ownerID).
		And("Status").Eq(models.CampaignStatusRunning).
		Limit(1)
	if err := s.db.Store().Find(&campaigns, query); err != nil {
		return nil, fmt.Errorf("failed to query running campaign: %w", err)
	}
	if len(campaigns) == 0 {
		return nil, models.ErrNotFound
	}
	return &campaigns[0], nil
}

func (s *CampaignStorage) UpdateStatus(ctx context.Context, campaignID string, status models.CampaignStatus, errMsg string) error {
	var campaign models.Campaign
	if err := s.db.Store().Get(campaignID, &campaign); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to get campaign: %w", err)
	}

	campaign.Status = status
	if errMsg != "" {
		campaign.Error = errMsg
	}
	if status == models.CampaignStatusStopped {
		now := time.Now()
		campaign.StoppedAt = &now
	}

	return s.SaveCampaign(ctx, &campaign)
}

func (s *CampaignStorage) ListCampaignsByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	var campaigns []models.Campaign
	if err := s.db.Store().Find(&campaigns, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	result := make([]*models.Campaign, len(campaigns))
	for i := range campaigns {
		result[i] = &campaigns[i]
	}
	return result, nil
}
