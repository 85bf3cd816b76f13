package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"escpos-service/internal/model"
)

func newJob(label string, receivedAt time.Time, sourceType model.SourceType) *model.PrintJob {
	return &model.PrintJob{
		ID:         uuid.New(),
		Label:      label,
		Source:     label,
		SourceType: sourceType,
		Payload:    []byte(label),
		SizeBytes:  len(label),
		Status:     model.JobStatusDecoded,
		Metadata:   model.JSONObject{"label": label},
		ReceivedAt: receivedAt,
	}
}

func labels(jobs []*model.PrintJob) []string {
	out := make([]string, len(jobs))
	for i, job := range jobs {
		out[i] = job.Label
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMemoryRepository_OrdersByReceiveTime(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository(zaptest.NewLogger(t))
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, job := range []*model.PrintJob{
		newJob("second", base.Add(2*time.Second), model.SourceTypeTCP),
		newJob("first", base.Add(time.Second), model.SourceTypeTCP),
		newJob("third", base.Add(3*time.Second), model.SourceTypeImport),
	} {
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	jobs, total, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if got, want := labels(jobs), []string{"first", "second", "third"}; !equalStrings(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestMemoryRepository_ListFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository(zaptest.NewLogger(t))
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"a", "b", "c", "d"} {
		sourceType := model.SourceTypeTCP
		if i == 2 {
			sourceType = model.SourceTypeImport
		}
		if err := repo.Create(ctx, newJob(name, base.Add(time.Duration(i)*time.Minute), sourceType)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tcp := model.SourceTypeTCP
	jobs, total, err := repo.List(ctx, &model.JobFilter{SourceType: &tcp, Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if got := labels(jobs); !equalStrings(got, []string{"b"}) {
		t.Errorf("page = %v, want [b]", got)
	}

	since := base.Add(2 * time.Minute)
	jobs, total, _ = repo.List(ctx, &model.JobFilter{Since: &since})
	if total != 2 || !equalStrings(labels(jobs), []string{"c", "d"}) {
		t.Errorf("since filter = %v (total %d)", labels(jobs), total)
	}

	jobs, _, _ = repo.List(ctx, &model.JobFilter{Offset: 10})
	if len(jobs) != 0 {
		t.Errorf("offset past end returned %d jobs", len(jobs))
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository(zaptest.NewLogger(t))
	job := newJob("copy", time.Now(), model.SourceTypeTCP)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	job.Payload[0] = 'X'

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if string(got.Payload) != "copy" {
		t.Errorf("payload = %q, stored job was mutated", got.Payload)
	}
	got.Metadata["label"] = "changed"

	again, _ := repo.GetByID(ctx, job.ID)
	if again.Metadata["label"] != "copy" {
		t.Errorf("metadata = %v, stored job was mutated", again.Metadata)
	}
}

func TestMemoryRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository(zaptest.NewLogger(t))
	missing := uuid.New()

	if _, err := repo.GetByID(ctx, missing); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetByID error = %v, want ErrJobNotFound", err)
	}
	if err := repo.Delete(ctx, missing); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Delete error = %v, want ErrJobNotFound", err)
	}
	if err := repo.Update(ctx, &model.PrintJob{ID: missing}); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Update error = %v, want ErrJobNotFound", err)
	}
}

func TestMemoryRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository(zaptest.NewLogger(t))
	job := newJob("update", time.Now(), model.SourceTypeTCP)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, job); err == nil {
		t.Error("expected duplicate id to be rejected")
	}

	job.CodePage = "cp437"
	job.CommandCount = 9
	if err := repo.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, job.ID)
	if got.CodePage != "cp437" || got.CommandCount != 9 {
		t.Errorf("updated job = %+v", got)
	}
}

func TestMemoryRepository_Retention(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJobRepository(zaptest.NewLogger(t))
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		if err := repo.Create(ctx, newJob(name, base.Add(time.Duration(i)*time.Hour), model.SourceTypeTCP)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	deleted, err := repo.TrimToCount(ctx, 3)
	if err != nil || deleted != 2 {
		t.Fatalf("TrimToCount = %d, %v; want 2", deleted, err)
	}
	jobs, _, _ := repo.List(ctx, nil)
	if got := labels(jobs); !equalStrings(got, []string{"c", "d", "e"}) {
		t.Errorf("after trim = %v", got)
	}

	if deleted, _ := repo.TrimToCount(ctx, 3); deleted != 0 {
		t.Errorf("second trim deleted %d", deleted)
	}

	deleted, err = repo.DeleteOlderThan(ctx, base.Add(3*time.Hour))
	if err != nil || deleted != 1 {
		t.Fatalf("DeleteOlderThan = %d, %v; want 1", deleted, err)
	}
	if count, _ := repo.Count(ctx); count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	deleted, _ = repo.DeleteAll(ctx)
	if deleted != 2 {
		t.Errorf("DeleteAll = %d, want 2", deleted)
	}
	if count, _ := repo.Count(ctx); count != 0 {
		t.Errorf("count = %d after DeleteAll", count)
	}
}
