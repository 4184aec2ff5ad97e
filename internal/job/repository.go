package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when no preview job has the requested ID.
var ErrJobNotFound = errors.New("job not found")

// Repository stores preview jobs. Implementations hand out copies, so a
// caller mutating a returned *Job must Save it for the change to stick.
type Repository interface {
	// Save inserts job or replaces the stored job with the same ID.
	Save(ctx context.Context, job *Job) error
	// FindByID returns ErrJobNotFound for unknown IDs.
	FindByID(ctx context.Context, id string) (*Job, error)
	// List returns every job ordered by CreatedAt, oldest first.
	List(ctx context.Context) ([]*Job, error)
	// Delete forgets a job. It returns ErrJobNotFound for unknown IDs and
	// never touches the job's artifact.
	Delete(ctx context.Context, id string) error
}
