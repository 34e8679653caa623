package renderer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/models"
)

func testArtifact() (*models.TailoredResume, *models.Resume) {
	artifact := &models.TailoredResume{
		ID: "tailored_test",
		Sections: map[string]string{
			"summary":    "Senior engineer focused on data pipelines.",
			"experience": "Acme Corp - built the ingestion platform.\n\nGlobex - ran the storage team.",
			"zextra":     "Additional notes.",
		},
	}
	resume := &models.Resume{
		ID:   "resume_test",
		Name: "Test Candidate",
		Contact: map[string]string{
			"email": "test@example.com",
			"phone": "+1 555 0100",
		},
	}
	return artifact, resume
}

func TestRenderWritesPDF(t *testing.T) {
	dir := t.TempDir()
	r := NewPDFRenderer(&common.DocsConfig{Dir: dir}, arbor.NewLogger())
	artifact, resume := testArtifact()

	path, err := r.Render(context.Background(), artifact, resume)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tailored_test.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderIsIdempotentPerArtifact(t *testing.T) {
	dir := t.TempDir()
	r := NewPDFRenderer(&common.DocsConfig{Dir: dir}, arbor.NewLogger())
	artifact, resume := testArtifact()

	first, err := r.Render(context.Background(), artifact, resume)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), artifact, resume)
	require.NoError(t, err)
	assert.Equal(t, first, second, "re-rendering overwrites the same path")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRenderRejectsEmptyArtifact(t *testing.T) {
	r := NewPDFRenderer(&common.DocsConfig{Dir: t.TempDir()}, arbor.NewLogger())

	_, err := r.Render(context.Background(), &models.TailoredResume{ID: "tailored_empty"}, &models.Resume{Name: "X"})
	require.Error(t, err)
}

func TestOrderedSectionsWellKnownFirst(t *testing.T) {
	names := orderedSections(map[string]string{
		"zextra":     "x",
		"education":  "x",
		"summary":    "x",
		"experience": "x",
		"aaa":        "x",
	})
	assert.Equal(t, []string{"summary", "experience", "education", "aaa", "zextra"}, names)
}
