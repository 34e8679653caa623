package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
	"github.com/ternarybob/peto/internal/interfaces"
	"github.com/ternarybob/peto/internal/models"
)

// sectionOrder fixes the render order for well-known resume sections; any
// other section follows alphabetically.
var sectionOrder = []string{"summary", "experience", "skills", "projects", "education", "certifications"}

// PDFRenderer writes tailored resumes as PDF files under a documents
// directory.
type PDFRenderer struct {
	dir    string
	logger arbor.ILogger
}

// NewPDFRenderer creates the renderer. The documents directory is created on
// first render.
func NewPDFRenderer(cfg *common.DocsConfig, logger arbor.ILogger) *PDFRenderer {
	return &PDFRenderer{
		dir:    cfg.Dir,
		logger: logger,
	}
}

// Render produces <dir>/<artifact-id>.pdf from the artifact's tailored
// sections and returns the file path. Re-rendering the same artifact
// overwrites the file, matching the idempotent upsert of the artifact row.
func (r *PDFRenderer) Render(ctx context.Context, artifact *models.TailoredResume, resume *models.Resume) (string, error) {
	if len(artifact.Sections) == 0 {
		return "", fmt.Errorf("artifact %s has no sections to render", artifact.ID)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// Header: candidate name and contact line.
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 8, resume.Name, "", 1, "C", false, 0, "")
	if contact := contactLine(resume); contact != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, contact, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, name := range orderedSections(artifact.Sections) {
		body := strings.TrimSpace(artifact.Sections[name])
		if body == "" {
			continue
		}

		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 7, strings.ToUpper(name), "B", 1, "L", false, 0, "")
		pdf.Ln(1)

		pdf.SetFont("Arial", "", 9)
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				pdf.Ln(2)
				continue
			}
			pdf.MultiCell(0, 5, line, "", "L", false)
		}
		pdf.Ln(4)
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create documents directory: %w", err)
	}

	path := filepath.Join(r.dir, artifact.ID+".pdf")
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write PDF %s: %w", path, err)
	}

	r.logger.Debug().
		Str("artifact_id", artifact.ID).
		Str("path", path).
		Int("sections", len(artifact.Sections)).
		Msg("Tailored resume rendered")

	return path, nil
}

// orderedSections returns section names in render order: the well-known
// sections first, everything else alphabetically after.
func orderedSections(sections map[string]string) []string {
	rank := make(map[string]int, len(sectionOrder))
	for i, name := range sectionOrder {
		rank[name] = i
	}

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iKnown := rank[strings.ToLower(names[i])]
		rj, jKnown := rank[strings.ToLower(names[j])]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return names[i] < names[j]
		}
	})
	return names
}

// contactLine joins the resume's contact fields into one header line.
func contactLine(resume *models.Resume) string {
	if len(resume.Contact) == 0 {
		return ""
	}
	keys := make([]string, 0, len(resume.Contact))
	for k := range resume.Contact {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(resume.Contact[k]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

var _ interfaces.DocumentRenderer = (*PDFRenderer)(nil)
