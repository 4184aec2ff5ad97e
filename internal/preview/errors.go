package preview

import (
	"errors"
	"fmt"
)

// Validation errors are returned as-is so callers can branch on them with
// errors.Is. Everything else is wrapped in a GenerationError.
var (
	// ErrNotFound is returned when the source video does not exist.
	ErrNotFound = errors.New("input video file not found")
	// ErrInvalidInput is the category of options or plans that cannot produce a preview.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoSections is returned when planning yields no sections.
	ErrNoSections = fmt.Errorf("%w: no valid sections to process", ErrInvalidInput)
	// ErrNoClips is returned when every section falls outside the source.
	ErrNoClips = fmt.Errorf("%w: no valid clips could be extracted", ErrInvalidInput)
	// ErrUnsupportedFormat is returned for an output format other than gif or mp4.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrInvalidInput)
)

// GenerationError wraps any failure during probing, extraction, resizing
// or encoding.
type GenerationError struct {
	// Stage names the pipeline step that failed.
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate thumbnail: %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// isValidationError reports whether err belongs to the user-error classes
// that pass through unwrapped.
func isValidationError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput)
}
