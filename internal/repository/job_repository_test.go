package repository

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

// stubRows yields one row per encoding; only the payload and encoding
// columns are filled in.
type stubRows struct {
	encodings []string
	scanErr   error
	iterErr   error
	pos       int
}

func (r *stubRows) Next() bool {
	r.pos++
	return r.pos <= len(r.encodings)
}

func (r *stubRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	*dest[4].(*[]byte) = []byte{0x1B, 0x40}
	*dest[5].(*string) = r.encodings[r.pos-1]
	return nil
}

func (r *stubRows) Err() error { return r.iterErr }

func TestCollectJobs(t *testing.T) {
	repo := &jobRepository{logger: zaptest.NewLogger(t)}

	jobs, err := repo.collectJobs(&stubRows{encodings: []string{PayloadEncodingRaw, PayloadEncodingRaw}})
	if err != nil {
		t.Fatalf("collectJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("got %d jobs, want 2", len(jobs))
	}

	jobs, err = repo.collectJobs(&stubRows{})
	if err != nil || jobs == nil || len(jobs) != 0 {
		t.Errorf("empty result = %v, %v; want empty slice", jobs, err)
	}
}

func TestCollectJobs_UnreadableRowFailsPage(t *testing.T) {
	repo := &jobRepository{logger: zaptest.NewLogger(t)}
	scanErr := errors.New("column type mismatch")
	iterErr := errors.New("connection lost")

	tests := []struct {
		name string
		rows *stubRows
		want error
	}{
		{"undecodable payload", &stubRows{encodings: []string{PayloadEncodingRaw, "lz4"}}, nil},
		{"scan error", &stubRows{encodings: []string{PayloadEncodingRaw}, scanErr: scanErr}, scanErr},
		{"iteration error", &stubRows{encodings: []string{PayloadEncodingRaw}, iterErr: iterErr}, iterErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := repo.collectJobs(tt.rows)
			if err == nil {
				t.Fatalf("expected error, got %d jobs", len(jobs))
			}
			if jobs != nil {
				t.Errorf("jobs = %v, want nil", jobs)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
