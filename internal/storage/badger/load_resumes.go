package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// LoadResumesFromFiles loads candidate resume profiles from YAML files in
// the specified directory. Existing profiles are updated in place; their
// cached blueprints are preserved so a restart does not force regeneration.
func LoadResumesFromFiles(ctx context.Context, resumeStorage interfaces.ResumeStorage, resumesDir string, logger arbor.ILogger) error {
	if _, err := os.Stat(resumesDir); os.IsNotExist(err) {
		logger.Debug().Str("dir", resumesDir).Msg("Resumes directory does not exist, skipping")
		return nil
	}

	logger.Info().Str("dir", resumesDir).Msg("Loading resume profiles from files")

	entries, err := os.ReadDir(resumesDir)
	if err != nil {
		return fmt.Errorf("failed to read resumes directory: %w", err)
	}

	loadedCount := 0
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		filePath := filepath.Join(resumesDir, entry.Name())

		data, err := os.ReadFile(filePath)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read resume file")
			continue
		}

		var resume models.Resume
		if err := yaml.Unmarshal(data, &resume); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse resume YAML")
			continue
		}

		if resume.ID == "" {
			resume.ID = "resume_" + strings.TrimSuffix(entry.Name(), ext)
		}
		if resume.OwnerID == "" {
			logger.Warn().Str("file", entry.Name()).Msg("Resume file missing owner_id, skipping")
			continue
		}

		// Preserve memoized blueprint on reload
		if existing, err := resumeStorage.GetResume(ctx, resume.ID); err == nil && existing.Blueprint != nil {
			resume.Blueprint = existing.Blueprint
			resume.CreatedAt = existing.CreatedAt
		}

		if err := resumeStorage.SaveResume(ctx, &resume); err != nil {
			logger.Warn().Err(err).Str("resume_id", resume.ID).Msg("Failed to save resume")
			continue
		}

		loadedCount++
		logger.Debug().
			Str("resume_id", resume.ID).
			Str("owner_id", resume.OwnerID).
			Msg("Resume profile loaded")
	}

	logger.Info().Int("count", loadedCount).Msg("Resume profiles loaded")
	return nil
}
