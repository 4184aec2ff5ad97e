// Package job runs preview generations as asynchronous jobs. It includes the
// Job entity with its state machine, repository ports with memory and SQLite
// implementations, and the PreviewService that drives generation.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/clipthumb/internal/job/id"
	"github.com/maauso/clipthumb/internal/preview"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for a free worker slot.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the preview is being generated.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the preview was produced.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates generation or publishing failed.
	StatusFailed Status = "FAILED"
)

// IsValid returns true if the status is known.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Job is a single preview request and its outcome.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// SourcePath is the video the preview is built from.
	SourcePath string
	// Options are the generation options as submitted.
	Options preview.Options
	// Publish requests an upload of the finished artifact.
	Publish bool
	// Result is set once the job completes.
	Result *preview.Result
	// URL is the published location when Publish was true.
	URL string
	// Error contains the failure message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New(sourcePath string, opts preview.Options, publish bool) *Job {
	return NewWithID(id.Generate(), sourcePath, opts, publish)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID, sourcePath string, opts preview.Options, publish bool) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         jobID,
		Status:     StatusInQueue,
		SourcePath: sourcePath,
		Options:    opts,
		Publish:    publish,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now().UTC()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete records the result and transitions the job to COMPLETED.
func (j *Job) Complete(result preview.Result, url string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.Result = cloneResult(&result)
	j.URL = url
	return nil
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	opts := j.Options
	opts.Sections = slices.Clone(j.Options.Sections)

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		SourcePath:  j.SourcePath,
		Options:     opts,
		Publish:     j.Publish,
		Result:      cloneResult(j.Result),
		URL:         j.URL,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

func cloneResult(r *preview.Result) *preview.Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Sections = slices.Clone(r.Sections)
	if r.HasAudio != nil {
		v := *r.HasAudio
		c.HasAudio = &v
	}
	if r.AudioQuality != nil {
		v := *r.AudioQuality
		c.AudioQuality = &v
	}
	return &c
}
