package database

import (
	"context"

	"github.com/jesses-code-adventures/progress/internal/models"
)

// DB is the submission journal: an append-only record of what was sent to
// the ERP.
type DB interface {
	Close() error

	Migrate(ctx context.Context) error
	Reset(ctx context.Context) error

	RecordSubmission(ctx context.Context, summary *models.SubmissionSummary) error
	ListSubmissions(ctx context.Context, projectCode string, limit int) ([]*models.SubmissionSummary, error)
}
