package interfaces

import (
	"context"

	"github.com/ternarybob/peto/internal/models"
)

// DocumentRenderer is the opaque document-production capability: it renders
// a tailored resume into a document and returns the stored object path.
type DocumentRenderer interface {
	Render(ctx context.Context, artifact *models.TailoredResume, resume *models.Resume) (string, error)
}
