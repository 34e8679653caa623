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

// ResumeStorage implements the ResumeStorage interface for Badger
type ResumeStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResumeStorage creates a new ResumeStorage instance
func NewResumeStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResumeStorage {
	return &ResumeStorage{db: db, logger: logger}
}

func (s *ResumeStorage) SaveResume(ctx context.Context, resume *models.Resume) error {
	if resume.ID == "" {
		return fmt.Errorf("resume ID is required")
	}
	if resume.CreatedAt.IsZero() {
		resume.CreatedAt = time.Now()
	}
	resume.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(resume.ID, resume); err != nil {
		return fmt.Errorf("failed to save resume: %w", err)
	}
	return nil
}

func (s *ResumeStorage) GetResume(ctx context.Context, resumeID string) (*models.Resume, error) {
	var resume models.Resume
	if err := s.db.Store().Get(resumeID, &resume); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return &resume, nil
}

func (s *ResumeStorage) SaveBlueprint(ctx context.Context, resumeID string, blueprint *models.ResumeBlueprint) error {
	resume, err := s.GetResume(ctx, resumeID)
	if err != nil {
		return err
	}
	resume.Blueprint = blueprint
	return s.SaveResume(ctx, resume)
}
