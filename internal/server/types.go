// Package server provides the HTTP surface for preview jobs.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/clipthumb/internal/job"
	"github.com/maauso/clipthumb/internal/preview"
)

// CreatePreviewRequest is the HTTP request body for creating a preview job.
type CreatePreviewRequest struct {
	// SourcePath is the server-local video to build the preview from.
	SourcePath string `json:"source_path" validate:"required"`
	// Options override the generation defaults field by field.
	Options *PreviewOptionsRequest `json:"options" validate:"omitempty"`
	// Publish uploads the finished artifact to S3.
	Publish bool `json:"publish"`
}

// PreviewOptionsRequest mirrors preview.Options. Nil fields keep their defaults.
type PreviewOptionsRequest struct {
	Quality             *int             `json:"quality" validate:"omitempty,min=0,max=100"`
	AutoFrames          *bool            `json:"autoFrames"`
	FramesPerSection    *float64         `json:"framesPerSection" validate:"omitempty,gt=0,max=300"`
	Sections            []SectionRequest `json:"sections" validate:"omitempty,dive"`
	AutoSections        *int             `json:"autoSections" validate:"omitempty,min=1,max=100"`
	SectionDuration     *float64         `json:"sectionDuration" validate:"omitempty,gt=0"`
	Width               *int             `json:"width" validate:"omitempty,min=1,max=7680"`
	Height              *int             `json:"height" validate:"omitempty,min=1,max=4320"`
	MaintainAspectRatio *bool            `json:"maintainAspectRatio"`
	Format              *string          `json:"format" validate:"omitempty,oneof=gif mp4"`
	IncludeAudio        *bool            `json:"includeAudio"`
	AudioQuality        *int             `json:"audioQuality" validate:"omitempty,min=32,max=512"`
	GIFColors           *int             `json:"gifColors" validate:"omitempty,min=2,max=256"`
	GIFFuzz             *int             `json:"gifFuzz" validate:"omitempty,min=1,max=100"`
}

// SectionRequest is one explicit sampling window.
type SectionRequest struct {
	StartTime *float64 `json:"startTime" validate:"required,min=0"`
	Duration  *float64 `json:"duration" validate:"required,gt=0"`
}

// toOptions overlays the request on preview.DefaultOptions. Output and
// cache locations are not exposed over HTTP.
func (o *PreviewOptionsRequest) toOptions() preview.Options {
	opts := preview.DefaultOptions()
	if o == nil {
		return opts
	}

	setInt(&opts.Quality, o.Quality)
	setBool(&opts.AutoFrames, o.AutoFrames)
	if o.FramesPerSection != nil {
		opts.FramesPerSection = *o.FramesPerSection
	}
	setInt(&opts.AutoSections, o.AutoSections)
	if o.SectionDuration != nil {
		opts.SectionDuration = *o.SectionDuration
	}
	setInt(&opts.Width, o.Width)
	setInt(&opts.Height, o.Height)
	setBool(&opts.MaintainAspectRatio, o.MaintainAspectRatio)
	if o.Format != nil {
		opts.Format = preview.Format(*o.Format)
	}
	setBool(&opts.IncludeAudio, o.IncludeAudio)
	setInt(&opts.AudioQuality, o.AudioQuality)
	setInt(&opts.GIFColors, o.GIFColors)
	setInt(&opts.GIFFuzz, o.GIFFuzz)

	if len(o.Sections) > 0 {
		opts.Sections = make([]preview.Section, len(o.Sections))
		for i, s := range o.Sections {
			opts.Sections[i] = preview.Section{StartTime: *s.StartTime, Duration: *s.Duration}
		}
	}
	return opts
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// CreatePreviewResponse is the HTTP response after creating a job.
type CreatePreviewResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// PreviewResponse is the HTTP response for getting job details.
type PreviewResponse struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	SourcePath  string          `json:"source_path"`
	Format      string          `json:"format"`
	Error       string          `json:"error,omitempty"`
	Result      *preview.Result `json:"result,omitempty"`
	URL         string          `json:"url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ListPreviewsResponse is the HTTP response for listing jobs.
type ListPreviewsResponse struct {
	Previews []PreviewResponse `json:"previews"`
}

func newPreviewResponse(j *job.Job) PreviewResponse {
	return PreviewResponse{
		ID:          j.ID,
		Status:      string(j.Status),
		SourcePath:  j.SourcePath,
		Format:      string(j.Options.Format),
		Error:       j.Error,
		Result:      j.Result,
		URL:         j.URL,
		CreatedAt:   j.CreatedAt,
		StartedAt:   optionalTime(j.StartedAt),
		CompletedAt: optionalTime(j.CompletedAt),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Publishing bool   `json:"publishing"`
}
