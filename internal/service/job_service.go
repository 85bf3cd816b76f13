// internal/service/job_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"escpos-service/internal/capture"
	"escpos-service/internal/config"
	"escpos-service/internal/model"
	"escpos-service/internal/repository"
	"escpos-service/internal/utils"
	"escpos-service/pkg/barcode"
	"escpos-service/pkg/escpos"
)

var (
	// ErrNoiseJob is returned when a captured job is dropped by the noise filter.
	ErrNoiseJob = errors.New("job has no visible output")
	// ErrEmptyPayload is returned when an import carries no bytes.
	ErrEmptyPayload = errors.New("payload is empty")
	// ErrCommandIndex is returned for a command index outside the job.
	ErrCommandIndex = errors.New("command index out of range")
	// ErrNotBarcode is returned when the indexed command is not a barcode.
	ErrNotBarcode = errors.New("command is not a barcode")
	// ErrUnsupportedBarcode is returned when no encoder accepts the barcode.
	ErrUnsupportedBarcode = errors.New("barcode cannot be encoded")
)

// EventPublisher receives job events
type EventPublisher interface {
	Publish(event model.JobEvent)
}

// CaptureStatus reports one running capture source
type CaptureStatus struct {
	Source string        `json:"source"`
	Stats  capture.Stats `json:"stats"`
}

// ServiceStats holds job counters since start
type ServiceStats struct {
	JobsCaptured int64 `json:"jobs_captured"`
	JobsImported int64 `json:"jobs_imported"`
	JobsIgnored  int64 `json:"jobs_ignored"`
	JobsFailed   int64 `json:"jobs_failed"`
	JobsPruned   int64 `json:"jobs_pruned"`
}

// JobService handles captured job business logic
type JobService struct {
	jobRepo    repository.JobRepository
	jobs       config.JobsConfig
	nulMaxMode *byte
	publisher  EventPublisher
	baseLogger *zap.Logger
	logger     *utils.ServiceLogger

	mutex    sync.RWMutex
	codePage escpos.CodePage
	sources  []capture.Source

	captured atomic.Int64
	imported atomic.Int64
	ignored  atomic.Int64
	failed   atomic.Int64
	pruned   atomic.Int64

	now       func() time.Time
	listPorts func() ([]string, error)
}

// NewJobService creates a new job service instance
func NewJobService(
	jobRepo repository.JobRepository,
	cfg *config.Config,
	publisher EventPublisher,
	logger *zap.Logger,
) *JobService {
	opts := cfg.DecoderOptions()
	return &JobService{
		jobRepo:    jobRepo,
		jobs:       cfg.Jobs,
		nulMaxMode: opts.BarcodeNULMaxMode,
		publisher:  publisher,
		baseLogger: logger,
		logger:     utils.NewServiceLogger(logger, "job-service"),
		codePage:   opts.CodePage,
		now:        time.Now,
		listPorts:  capture.ListSerialPorts,
	}
}

// CodePage returns the code page applied to new jobs.
func (s *JobService) CodePage() escpos.CodePage {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.codePage
}

func (s *JobService) decoder(cp escpos.CodePage) *escpos.Decoder {
	return escpos.NewDecoder(escpos.Options{
		CodePage:          cp,
		BarcodeNULMaxMode: s.nulMaxMode,
	})
}

// decodeJob decodes a stored job with the code page it was last decoded with.
func (s *JobService) decodeJob(job *model.PrintJob) []escpos.ParsedCommand {
	cp, err := escpos.ParseCodePage(job.CodePage)
	if err != nil {
		cp = s.CodePage()
	}
	return s.decoder(cp).Decode(job.Payload)
}

func (s *JobService) publish(eventType model.EventType, jobID *uuid.UUID, data model.JSONObject) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(model.NewJobEvent(eventType, jobID, data))
}

// applyDecode sets the decode-derived fields of job.
func applyDecode(job *model.PrintJob, cp escpos.CodePage, cmds []escpos.ParsedCommand) {
	visible := escpos.HasVisibleOutput(cmds)
	unknown := 0
	for _, pc := range cmds {
		switch pc.Command.(type) {
		case escpos.UnknownEscOpcode, escpos.UnknownGsOpcode, escpos.UnrecognizedByte:
			unknown++
		}
	}

	job.CodePage = cp.String()
	job.CommandCount = len(cmds)
	job.Status = model.JobStatusDecoded
	if !visible {
		job.Status = model.JobStatusEmpty
	}
	job.Metadata = model.JSONObject{
		"visible_output":   visible,
		"unknown_commands": unknown,
	}
}

// Run consumes jobs from every source until ctx is cancelled, then stops
// the sources and waits for their queues to drain. Age pruning runs on
// its own ticker when enabled.
func (s *JobService) Run(ctx context.Context, sources ...capture.Source) {
	s.mutex.Lock()
	s.sources = append(s.sources, sources...)
	s.mutex.Unlock()

	var wg sync.WaitGroup
	for _, src := range sources {
		sourceType := model.SourceTypeTCP
		if _, ok := src.(*capture.SerialCapture); ok {
			sourceType = model.SourceTypeSerial
		}

		captureLogger := utils.NewCaptureLogger(s.baseLogger, src.Describe())
		captureLogger.LogStarted()
		s.publish(model.EventCaptureStarted, nil, model.JSONObject{"source": src.Describe()})

		wg.Add(1)
		go func(src capture.Source) {
			defer wg.Done()
			for job := range src.Jobs() {
				// Jobs still queued at shutdown are stored with a fresh context.
				if _, err := s.Ingest(context.WithoutCancel(ctx), job, sourceType); err != nil && !errors.Is(err, ErrNoiseJob) {
					s.logger.Error("Failed to ingest captured job",
						zap.String("source", job.Source),
						zap.Error(err),
					)
				}
			}
			stats := src.Stats()
			captureLogger.LogStopped(stats.Connections, stats.JobsEmitted, stats.BytesRead)
			s.publish(model.EventCaptureStopped, nil, model.JSONObject{"source": src.Describe()})
		}(src)
	}

	if s.jobs.PruneByAge && s.jobs.PruneInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pruneLoop(ctx)
		}()
	}

	<-ctx.Done()
	for _, src := range sources {
		src.Stop()
	}
	wg.Wait()
	s.logger.Info("Job capture stopped")
}

func (s *JobService) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(s.jobs.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PruneExpired(ctx); err != nil {
				s.logger.Warn("Age pruning failed", zap.Error(err))
			}
		}
	}
}

// Ingest decodes a captured job and stores it. Small jobs without visible
// output are dropped with ErrNoiseJob when the noise filter is enabled.
func (s *JobService) Ingest(ctx context.Context, captured capture.CapturedJob, sourceType model.SourceType) (*model.PrintJob, error) {
	job := &model.PrintJob{
		ID:         uuid.New(),
		Label:      captured.Source,
		Source:     captured.Source,
		SourceType: sourceType,
		Payload:    captured.Payload,
		SizeBytes:  len(captured.Payload),
		ReceivedAt: captured.ReceivedAt,
	}
	if job.ReceivedAt.IsZero() {
		job.ReceivedAt = s.now()
	}

	jobLogger := utils.NewJobLogger(s.baseLogger, job.ID.String(), job.Source)
	cp := s.CodePage()
	cmds := s.decoder(cp).Decode(job.Payload)
	jobLogger.Decoded(job.SizeBytes, len(cmds), cp.String())

	if s.jobs.IgnoreNoise && job.SizeBytes <= s.jobs.NoiseMaxBytes && !escpos.HasVisibleOutput(cmds) {
		s.ignored.Add(1)
		jobLogger.Ignored(job.SizeBytes)
		s.publish(model.EventJobIgnored, nil, model.JSONObject{
			"source":     job.Source,
			"size_bytes": job.SizeBytes,
		})
		return nil, ErrNoiseJob
	}

	applyDecode(job, cp, cmds)
	if err := s.store(ctx, job, jobLogger); err != nil {
		return nil, err
	}

	s.captured.Add(1)
	s.publish(model.EventJobCaptured, &job.ID, jobEventData(job))
	return job, nil
}

// Import stores a raw byte file as a job. The noise filter does not apply.
func (s *JobService) Import(ctx context.Context, label string, payload []byte) (*model.PrintJob, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	now := s.now()
	if label == "" {
		label = "import " + now.Format(time.RFC3339)
	}
	job := &model.PrintJob{
		ID:         uuid.New(),
		Label:      label,
		Source:     "import",
		SourceType: model.SourceTypeImport,
		Payload:    payload,
		SizeBytes:  len(payload),
		ReceivedAt: now,
	}

	jobLogger := utils.NewJobLogger(s.baseLogger, job.ID.String(), job.Source)
	cp := s.CodePage()
	cmds := s.decoder(cp).Decode(payload)
	jobLogger.Decoded(job.SizeBytes, len(cmds), cp.String())
	applyDecode(job, cp, cmds)

	if err := s.store(ctx, job, jobLogger); err != nil {
		return nil, err
	}

	s.imported.Add(1)
	s.publish(model.EventJobImported, &job.ID, jobEventData(job))
	return job, nil
}

// store persists job and trims history to the configured size.
func (s *JobService) store(ctx context.Context, job *model.PrintJob, jobLogger *utils.JobLogger) error {
	if err := s.jobRepo.Create(ctx, job); err != nil {
		s.failed.Add(1)
		jobLogger.Error(err)
		return fmt.Errorf("failed to store job: %w", err)
	}
	jobLogger.Success(zap.Int("commands", job.CommandCount), zap.String("status", string(job.Status)))

	deleted, err := s.jobRepo.TrimToCount(ctx, s.jobs.MaxJobs)
	if err != nil {
		s.logger.Warn("Failed to trim job history", zap.Error(err))
		return nil
	}
	if deleted > 0 {
		s.pruned.Add(deleted)
		s.publish(model.EventJobsPruned, nil, model.JSONObject{
			"deleted": deleted,
			"reason":  "max_jobs",
		})
	}
	return nil
}

func jobEventData(job *model.PrintJob) model.JSONObject {
	return model.JSONObject{
		"label":         job.Label,
		"source":        job.Source,
		"source_type":   job.SourceType,
		"size_bytes":    job.SizeBytes,
		"command_count": job.CommandCount,
		"status":        job.Status,
		"received_at":   job.ReceivedAt,
	}
}

// PruneExpired deletes jobs older than the configured age limit.
func (s *JobService) PruneExpired(ctx context.Context) (int64, error) {
	if !s.jobs.PruneByAge || s.jobs.PruneAfter <= 0 {
		return 0, nil
	}

	deleted, err := s.jobRepo.DeleteOlderThan(ctx, s.now().Add(-s.jobs.PruneAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	if deleted > 0 {
		s.pruned.Add(deleted)
		s.logger.Info("Pruned expired jobs", zap.Int64("deleted", deleted))
		s.publish(model.EventJobsPruned, nil, model.JSONObject{
			"deleted": deleted,
			"reason":  "age",
		})
	}
	return deleted, nil
}

// List returns stored jobs, oldest first, and the number of matches.
func (s *JobService) List(ctx context.Context, filter *model.JobFilter) ([]*model.PrintJob, int, error) {
	jobs, total, err := s.jobRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, total, nil
}

// Get returns one job.
func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

// Delete removes one job.
func (s *JobService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.jobRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(model.EventJobDeleted, &id, nil)
	return nil
}

// Clear removes every job.
func (s *JobService) Clear(ctx context.Context) (int64, error) {
	deleted, err := s.jobRepo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear jobs: %w", err)
	}
	s.publish(model.EventJobsCleared, nil, model.JSONObject{"deleted": deleted})
	return deleted, nil
}

// Commands decodes a job into its command views. With merge set, adjacent
// text runs of the same line style are joined.
func (s *JobService) Commands(ctx context.Context, id uuid.UUID, merge bool) ([]model.CommandView, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cmds := s.decodeJob(job)
	if merge {
		cmds = escpos.MergeText(cmds)
	}
	return model.NewCommandViews(cmds), nil
}

// Listing returns the debug label listing of a job.
func (s *JobService) Listing(ctx context.Context, id uuid.UUID) ([]string, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return escpos.FormatListing(s.decodeJob(job)), nil
}

// HexDump returns the job bytes as a hex dump.
func (s *JobService) HexDump(ctx context.Context, id uuid.UUID) (string, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return utils.PrettyHex(job.Payload), nil
}

// Raw returns the captured job bytes.
func (s *JobService) Raw(ctx context.Context, id uuid.UUID) ([]byte, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.Payload, nil
}

// Reparse decodes every stored job again with cp, which also becomes the
// code page for new jobs. It returns the number of jobs updated.
func (s *JobService) Reparse(ctx context.Context, cp escpos.CodePage) (int, error) {
	s.mutex.Lock()
	s.codePage = cp
	s.mutex.Unlock()

	jobs, _, err := s.jobRepo.List(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	dec := s.decoder(cp)
	updated := 0
	for _, job := range jobs {
		applyDecode(job, cp, dec.Decode(job.Payload))
		if err := s.jobRepo.Update(ctx, job); err != nil {
			if errors.Is(err, repository.ErrJobNotFound) {
				continue
			}
			return updated, fmt.Errorf("failed to update job %s: %w", job.ID, err)
		}
		updated++
	}

	s.logger.Info("Reparsed jobs", zap.String("code_page", cp.String()), zap.Int("jobs", updated))
	s.publish(model.EventJobsReparsed, nil, model.JSONObject{
		"code_page": cp.String(),
		"jobs":      updated,
	})
	return updated, nil
}

// ReparseJob decodes one job again with cp.
func (s *JobService) ReparseJob(ctx context.Context, id uuid.UUID, cp escpos.CodePage) (*model.PrintJob, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applyDecode(job, cp, s.decoder(cp).Decode(job.Payload))
	if err := s.jobRepo.Update(ctx, job); err != nil {
		return nil, err
	}

	s.publish(model.EventJobsReparsed, &job.ID, model.JSONObject{
		"code_page": cp.String(),
		"jobs":      1,
	})
	return job, nil
}

// Barcode encodes the barcode command at index of a job into module runs.
func (s *JobService) Barcode(ctx context.Context, id uuid.UUID, index int) (*model.BarcodeView, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cmds := s.decodeJob(job)
	if index < 0 || index >= len(cmds) {
		return nil, fmt.Errorf("%w: %d", ErrCommandIndex, index)
	}
	bc, ok := cmds[index].Command.(escpos.Barcode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBarcode, cmds[index].Command.Name())
	}

	result, ok := barcode.Encode(bc.Mode, bc.Data)
	if !ok {
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupportedBarcode, bc.Mode)
	}

	return &model.BarcodeView{
		Index:            index,
		Mode:             bc.Mode,
		Payload:          string(bc.Data),
		Symbology:        result.Symbology.String(),
		Encoded:          true,
		Runs:             result.Runs,
		StartsDark:       result.StartsDark,
		Modules:          result.Modules(),
		QuietZoneModules: barcode.QuietZoneModules,
		Text:             result.Text,
		State:            cmds[index].State,
	}, nil
}

// CaptureStatus reports every source passed to Run.
func (s *JobService) CaptureStatus() []CaptureStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	status := make([]CaptureStatus, 0, len(s.sources))
	for _, src := range s.sources {
		status = append(status, CaptureStatus{Source: src.Describe(), Stats: src.Stats()})
	}
	return status
}

// SerialPorts lists the host's serial ports, flagging those a running
// source is capturing from.
func (s *JobService) SerialPorts() ([]capture.SerialPortInfo, error) {
	names, err := s.listPorts()
	if err != nil {
		s.logger.Error("Failed to list serial ports", zap.Error(err))
		return nil, err
	}

	s.mutex.RLock()
	capturing := make(map[string]bool)
	for _, src := range s.sources {
		if sc, ok := src.(*capture.SerialCapture); ok {
			capturing[sc.Port()] = true
		}
	}
	s.mutex.RUnlock()

	ports := make([]capture.SerialPortInfo, len(names))
	for i, name := range names {
		ports[i] = capture.SerialPortInfo{Name: name, Capturing: capturing[name]}
	}
	return ports, nil
}

// Stats returns job counters since start.
func (s *JobService) Stats() ServiceStats {
	return ServiceStats{
		JobsCaptured: s.captured.Load(),
		JobsImported: s.imported.Load(),
		JobsIgnored:  s.ignored.Load(),
		JobsFailed:   s.failed.Load(),
		JobsPruned:   s.pruned.Load(),
	}
}
