// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"escpos-service/internal/model"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned when no job has the requested id.
var ErrJobNotFound = errors.New("job not found")

// JobRepository defines print job data access operations. Listings are
// ordered oldest first, which is print order.
type JobRepository interface {
	// CRUD operations
	Create(ctx context.Context, job *model.PrintJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error)
	Update(ctx context.Context, job *model.PrintJob) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Listing
	List(ctx context.Context, filter *model.JobFilter) ([]*model.PrintJob, int, error)
	Count(ctx context.Context) (int, error)

	// Retention
	DeleteAll(ctx context.Context) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	TrimToCount(ctx context.Context, maxJobs int) (int64, error)
}
