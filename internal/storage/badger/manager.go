package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	campaign interfaces.CampaignStorage
	job      interfaces.ScrapedJobStorage
	match    interfaces.MatchStorage
	tailored interfaces.TailoredStorage
	resume   interfaces.ResumeStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		campaign: NewCampaignStorage(db, logger),
		job:      NewScrapedJobStorage(db, logger),
		match:    NewMatchStorage(db, logger),
		tailored: NewTailoredStorage(db, logger),
		resume:   NewResumeStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")
	return manager, nil
}

// CampaignStorage returns the Campaign storage interface
func (m *Manager) CampaignStorage() interfaces.CampaignStorage {
	return m.campaign
}

// ScrapedJobStorage returns the ScrapedJob storage interface
func (m *Manager) ScrapedJobStorage() interfaces.ScrapedJobStorage {
	return m.job
}

// MatchStorage returns the Match storage interface
func (m *Manager) MatchStorage() interfaces.MatchStorage {
	return m.match
}

// TailoredStorage returns the Tailored storage interface
func (m *Manager) TailoredStorage() interfaces.TailoredStorage {
	return m.tailored
}

// ResumeStorage returns the Resume storage interface
func (m *Manager) ResumeStorage() interfaces.ResumeStorage {
	return m.resume
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
