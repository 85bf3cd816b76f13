// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"escpos-service/internal/model"
)

// memoryJobRepository keeps jobs in process memory, oldest first
type memoryJobRepository struct {
	mutex  sync.RWMutex
	jobs   []*model.PrintJob
	logger *zap.Logger
}

// NewMemoryJobRepository creates an in-memory job repository
func NewMemoryJobRepository(logger *zap.Logger) JobRepository {
	return &memoryJobRepository{logger: logger}
}

func copyJob(job *model.PrintJob) *model.PrintJob {
	cp := *job
	cp.Payload = append([]byte(nil), job.Payload...)
	if job.Metadata != nil {
		cp.Metadata = make(model.JSONObject, len(job.Metadata))
		for k, v := range job.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Create stores a job, keeping the list ordered by receive time
func (r *memoryJobRepository) Create(ctx context.Context, job *model.PrintJob) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.jobs {
		if existing.ID == job.ID {
			return fmt.Errorf("job already exists with id: %s", job.ID)
		}
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	stored := copyJob(job)
	i := sort.Search(len(r.jobs), func(i int) bool {
		return r.jobs[i].ReceivedAt.After(stored.ReceivedAt)
	})
	r.jobs = append(r.jobs, nil)
	copy(r.jobs[i+1:], r.jobs[i:])
	r.jobs[i] = stored
	return nil
}

// GetByID retrieves a job by ID
func (r *memoryJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, job := range r.jobs {
		if job.ID == id {
			return copyJob(job), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// Update replaces a stored job
func (r *memoryJobRepository) Update(ctx context.Context, job *model.PrintJob) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, existing := range r.jobs {
		if existing.ID == job.ID {
			job.UpdatedAt = time.Now()
			r.jobs[i] = copyJob(job)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
}

// Delete removes a job
func (r *memoryJobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, job := range r.jobs {
		if job.ID == id {
			r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

// List returns jobs matching filter and the total number of matches
func (r *memoryJobRepository) List(ctx context.Context, filter *model.JobFilter) ([]*model.PrintJob, int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matched []*model.PrintJob
	for _, job := range r.jobs {
		if filter != nil {
			if filter.SourceType != nil && job.SourceType != *filter.SourceType {
				continue
			}
			if filter.Since != nil && job.ReceivedAt.Before(*filter.Since) {
				continue
			}
		}
		matched = append(matched, job)
	}

	total := len(matched)
	if filter != nil {
		if filter.Offset > 0 {
			matched = matched[min(filter.Offset, len(matched)):]
		}
		if filter.Limit > 0 && len(matched) > filter.Limit {
			matched = matched[:filter.Limit]
		}
	}

	out := make([]*model.PrintJob, len(matched))
	for i, job := range matched {
		out[i] = copyJob(job)
	}
	return out, total, nil
}

// Count returns the number of stored jobs
func (r *memoryJobRepository) Count(ctx context.Context) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.jobs), nil
}

// DeleteAll removes every job
func (r *memoryJobRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	n := len(r.jobs)
	r.jobs = nil
	return int64(n), nil
}

// DeleteOlderThan removes jobs received before cutoff
func (r *memoryJobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	kept := r.jobs[:0]
	for _, job := range r.jobs {
		if !job.ReceivedAt.Before(cutoff) {
			kept = append(kept, job)
		}
	}
	deleted := len(r.jobs) - len(kept)
	clear(r.jobs[len(kept):])
	r.jobs = kept
	return int64(deleted), nil
}

// TrimToCount drops the oldest jobs until at most maxJobs remain
func (r *memoryJobRepository) TrimToCount(ctx context.Context, maxJobs int) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	excess := len(r.jobs) - max(maxJobs, 0)
	if excess <= 0 {
		return 0, nil
	}
	r.jobs = append([]*model.PrintJob(nil), r.jobs[excess:]...)
	r.logger.Debug("Trimmed job history", zap.Int("deleted", excess), zap.Int("kept", len(r.jobs)))
	return int64(excess), nil
}
