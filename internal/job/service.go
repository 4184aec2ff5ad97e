package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/maauso/clipthumb/internal/preview"
	"github.com/maauso/clipthumb/internal/storage"
)

// ErrPublishingDisabled is returned when a job asks for publishing but no
// Publisher is configured.
var ErrPublishingDisabled = errors.New("publishing is not configured")

// ErrJobActive is returned when deleting a job that has not finished.
var ErrJobActive = errors.New("job is still active")

// DefaultMaxConcurrentJobs bounds simultaneous generations when not configured.
const DefaultMaxConcurrentJobs = 2

// Generator produces a preview for a source video.
// *preview.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, sourcePath string, opts preview.Options) (preview.Result, error)
}

// CreatePreviewInput contains the parameters of a preview request.
type CreatePreviewInput struct {
	// SourcePath is the video to build the preview from.
	SourcePath string
	// Options control the generation.
	Options preview.Options
	// Publish uploads the finished artifact.
	Publish bool
}

// PreviewService creates preview jobs and runs them. Each job is one
// Generate call; at most maxConcurrentJobs run at once and the rest wait
// in IN_QUEUE.
type PreviewService struct {
	repo      Repository
	generator Generator
	publisher storage.Publisher
	logger    *slog.Logger

	maxConcurrentJobs int
	slots             chan struct{}
	wg                sync.WaitGroup
}

// ServiceOption configures a PreviewService.
type ServiceOption func(*PreviewService)

// WithPublisher enables publishing of finished artifacts.
func WithPublisher(p storage.Publisher) ServiceOption {
	return func(s *PreviewService) {
		s.publisher = p
	}
}

// WithMaxConcurrentJobs sets how many jobs may generate at once.
// Values below 1 are ignored.
func WithMaxConcurrentJobs(n int) ServiceOption {
	return func(s *PreviewService) {
		if n > 0 {
			s.maxConcurrentJobs = n
		}
	}
}

// NewPreviewService creates a new PreviewService.
func NewPreviewService(repo Repository, generator Generator, logger *slog.Logger, opts ...ServiceOption) *PreviewService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PreviewService{
		repo:              repo,
		generator:         generator,
		logger:            logger,
		maxConcurrentJobs: DefaultMaxConcurrentJobs,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.slots = make(chan struct{}, s.maxConcurrentJobs)
	return s
}

// PublishingEnabled reports whether jobs may request publishing.
func (s *PreviewService) PublishingEnabled() bool {
	return s.publisher != nil
}

// CreateJob persists a new job in IN_QUEUE status without running it.
func (s *PreviewService) CreateJob(ctx context.Context, input CreatePreviewInput) (*Job, error) {
	if input.Publish && s.publisher == nil {
		return nil, ErrPublishingDisabled
	}

	job := New(input.SourcePath, input.Options, input.Publish)

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("source", input.SourcePath),
		slog.String("format", string(input.Options.Format)),
		slog.Bool("publish", input.Publish),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// Submit creates a job and processes it in the background. The background
// work is detached from ctx cancellation but keeps its values.
func (s *PreviewService) Submit(ctx context.Context, input CreatePreviewInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func(ctx context.Context, jobID string) {
		defer s.wg.Done()
		if _, err := s.ProcessJob(ctx, jobID); err != nil {
			s.logger.Error("background processing failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}(context.WithoutCancel(ctx), job.ID)

	return job, nil
}

// Wait blocks until every job started by Submit has finished.
func (s *PreviewService) Wait() {
	s.wg.Wait()
}

// GetJob retrieves a job by ID.
func (s *PreviewService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all known jobs.
func (s *PreviewService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// DeleteJob forgets a finished job. The artifact stays in the cache, where
// other jobs with the same key may still reference it.
func (s *PreviewService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobActive, id, job.GetStatus())
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job deleted", slog.String("job_id", id))
	return nil
}

// ProcessJob runs a queued job to completion and returns its final state.
// Generation and publishing failures are recorded on the job and do not
// produce an error; the returned error is reserved for bookkeeping failures.
func (s *PreviewService) ProcessJob(ctx context.Context, jobID string) (*Job, error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for worker slot: %w", ctx.Err())
	}
	defer func() { <-s.slots }()

	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(slog.String("job_id", job.ID))

	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", job.ID, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}
	log.Info("job started", slog.String("source", job.SourcePath))

	result, url, runErr := s.run(ctx, job)
	if runErr != nil {
		log.Warn("job failed", slog.String("error", runErr.Error()))
		if err := job.Fail(runErr.Error()); err != nil {
			return nil, fmt.Errorf("fail job %s: %w", job.ID, err)
		}
	} else {
		log.Info("job completed",
			slog.String("path", result.Path),
			slog.Bool("cached", result.Cached),
			slog.String("url", url),
		)
		if err := job.Complete(result, url); err != nil {
			return nil, fmt.Errorf("complete job %s: %w", job.ID, err)
		}
	}

	if err := s.repo.Save(ctx, job); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

func (s *PreviewService) run(ctx context.Context, job *Job) (preview.Result, string, error) {
	result, err := s.generator.Generate(ctx, job.SourcePath, job.Options)
	if err != nil {
		return preview.Result{}, "", err
	}
	if !job.Publish {
		return result, "", nil
	}

	url, err := s.publish(ctx, result.Path)
	if err != nil {
		return preview.Result{}, "", err
	}
	return result, url, nil
}

func (s *PreviewService) publish(ctx context.Context, path string) (string, error) {
	if s.publisher == nil {
		return "", ErrPublishingDisabled
	}

	f, err := os.Open(path) // #nosec G304 - path comes from the generator
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	url, err := s.publisher.Publish(ctx, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return url, nil
}
