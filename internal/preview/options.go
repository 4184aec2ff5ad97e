// Package preview builds short GIF or MP4 previews from longer videos.
// It plans which sections of the source to sample, derives content-addressed
// cache keys, maps a single quality knob onto encoder parameters and
// orchestrates the media engine through extraction, concatenation, resizing
// and encoding.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Format is the output container of a preview.
type Format string

const (
	// FormatGIF produces an animated GIF.
	FormatGIF Format = "gif"
	// FormatMP4 produces an H.264 MP4 clip.
	FormatMP4 Format = "mp4"
)

// IsValid returns true if the format is supported.
func (f Format) IsValid() bool {
	return f == FormatGIF || f == FormatMP4
}

// Default option values.
const (
	DefaultQuality          = 75
	DefaultFramesPerSection = 10
	DefaultSectionDuration  = 3.0
	DefaultAudioQuality     = 128
	DefaultGIFColors        = 256
	DefaultGIFFuzz          = 30
)

// Section is a half-open time window [StartTime, StartTime+Duration) of the source.
type Section struct {
	StartTime float64 `json:"startTime" yaml:"startTime"`
	Duration  float64 `json:"duration" yaml:"duration"`
}

// End returns the exclusive end of the window.
func (s Section) End() float64 {
	return s.StartTime + s.Duration
}

// Options describes what preview to build. Values are accepted as-is:
// each field is checked where it is used, not when Options is constructed.
type Options struct {
	// Quality in [0,100] drives every encoder parameter.
	Quality int `json:"quality" yaml:"quality"`
	// AutoFrames derives FramesPerSection from the source frame rate.
	AutoFrames bool `json:"autoFrames" yaml:"autoFrames"`
	// FramesPerSection is the number of frames sampled per SectionDuration.
	// Fractional values are kept; they change the output frame rate.
	FramesPerSection float64 `json:"framesPerSection" yaml:"framesPerSection"`
	// Sections is an explicit plan. It takes precedence over AutoSections.
	Sections []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
	// AutoSections is the number of evenly spaced windows. Zero means unset.
	AutoSections int `json:"autoSections,omitempty" yaml:"autoSections,omitempty"`
	// SectionDuration is the window length in seconds.
	SectionDuration float64 `json:"sectionDuration" yaml:"sectionDuration"`
	// Width and Height are the target dimensions. Zero means unset.
	Width  int `json:"width,omitempty" yaml:"width,omitempty"`
	Height int `json:"height,omitempty" yaml:"height,omitempty"`
	// MaintainAspectRatio derives a missing dimension from the source aspect.
	MaintainAspectRatio bool `json:"maintainAspectRatio" yaml:"maintainAspectRatio"`
	// OutputPath overrides the cache path. Explicit outputs never populate the cache.
	OutputPath string `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	// CacheDir overrides the generator's cache directory.
	CacheDir string `json:"cacheDir,omitempty" yaml:"cacheDir,omitempty"`
	// Format selects GIF or MP4 output.
	Format Format `json:"format" yaml:"format"`
	// IncludeAudio keeps the source audio. Only meaningful for MP4.
	IncludeAudio bool `json:"includeAudio" yaml:"includeAudio"`
	// AudioQuality is the AAC bitrate in kbps.
	AudioQuality int `json:"audioQuality" yaml:"audioQuality"`
	// GIFColors and GIFFuzz are recomputed from Quality at encode time and
	// therefore take no part in the cache key.
	GIFColors int `json:"gifColors" yaml:"gifColors"`
	GIFFuzz   int `json:"gifFuzz" yaml:"gifFuzz"`
}

// DefaultOptions returns Options populated with the default values.
func DefaultOptions() Options {
	return Options{
		Quality:             DefaultQuality,
		AutoFrames:          true,
		FramesPerSection:    DefaultFramesPerSection,
		SectionDuration:     DefaultSectionDuration,
		MaintainAspectRatio: true,
		Format:              FormatGIF,
		AudioQuality:        DefaultAudioQuality,
		GIFColors:           DefaultGIFColors,
		GIFFuzz:             DefaultGIFFuzz,
	}
}

// ParseOptions decodes a YAML or JSON document over DefaultOptions, so
// fields absent from the document keep their defaults. An empty document
// yields the defaults.
func ParseOptions(data []byte) (Options, error) {
	return ApplyOptions(DefaultOptions(), data)
}

// ApplyOptions decodes a YAML or JSON document over base. Unknown keys are
// rejected with ErrInvalidInput. base is not modified.
func ApplyOptions(base Options, data []byte) (Options, error) {
	opts := base
	opts.Sections = slices.Clone(base.Sections)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("%w: parse options: %w", ErrInvalidInput, err)
	}
	return opts, nil
}

// LoadOptionsFile reads and parses an options document from path.
func LoadOptionsFile(path string) (Options, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return Options{}, fmt.Errorf("read options file: %w", err)
	}
	return ParseOptions(data)
}
