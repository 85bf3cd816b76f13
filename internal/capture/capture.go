// internal/capture/capture.go
package capture

import (
	"fmt"
	"sync"
	"time"
)

// CapturedJob is one complete print job received from a source.
type CapturedJob struct {
	Source     string    `json:"source"`
	Payload    []byte    `json:"-"`
	ReceivedAt time.Time `json:"received_at"`
}

// BindError reports that a listener could not bind its address.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Source produces captured jobs until stopped. Jobs is closed once Stop
// has returned.
type Source interface {
	Jobs() <-chan CapturedJob
	Stop()
	Describe() string
	Stats() Stats
}

// Stats provides capture-level counters
type Stats struct {
	Listening       bool      `json:"listening"`
	Connections     int64     `json:"connections"`
	JobsEmitted     int64     `json:"jobs_emitted"`
	JobsDropped     int64     `json:"jobs_dropped"`
	BytesRead       int64     `json:"bytes_read"`
	ErrorCount      int64     `json:"error_count"`
	LastActivity    time.Time `json:"last_activity"`
	ActiveReceivers int       `json:"active_receivers"`
}

// statsRecorder guards a Stats value shared by capture goroutines.
type statsRecorder struct {
	mutex sync.RWMutex
	stats Stats
}

func (r *statsRecorder) update(fn func(*Stats)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	fn(&r.stats)
}

func (r *statsRecorder) snapshot() Stats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.stats
}

// emitter delivers jobs to a single queue and stops delivering once the
// stop channel is closed.
type emitter struct {
	jobs  chan CapturedJob
	stop  chan struct{}
	stats *statsRecorder
}

func newEmitter(queueSize int, stats *statsRecorder) emitter {
	return emitter{
		jobs:  make(chan CapturedJob, queueSize),
		stop:  make(chan struct{}),
		stats: stats,
	}
}

// emit queues payload as a job. Empty payloads are never emitted. It
// reports whether the job was delivered.
func (e emitter) emit(source string, payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	select {
	case <-e.stop:
		e.stats.update(func(s *Stats) { s.JobsDropped++ })
		return false
	default:
	}

	job := CapturedJob{Source: source, Payload: payload, ReceivedAt: time.Now()}
	select {
	case e.jobs <- job:
		e.stats.update(func(s *Stats) {
			s.JobsEmitted++
			s.LastActivity = job.ReceivedAt
		})
		return true
	case <-e.stop:
		e.stats.update(func(s *Stats) { s.JobsDropped++ })
		return false
	}
}

func (e emitter) stopping() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}
