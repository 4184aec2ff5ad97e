// Package media provides the video operations the preview pipeline delegates
// to: probing, sub-range extraction, concatenation, resizing and encoding.
package media

import "context"

// Engine defines the interface for the media-codec collaborator.
// Implementations should use ffmpeg or similar tools for media manipulation.
// Every *Clip returned by an Engine must eventually be released with Close.
type Engine interface {
	// Probe reads stream metadata (frame rate, duration, streams) without
	// opening the file for processing.
	Probe(ctx context.Context, path string) (*ProbeResult, error)

	// Open returns a handle on an existing media file. The handle does not
	// own the file, so closing it never removes the source.
	Open(ctx context.Context, path string) (*Clip, error)

	// Subclip extracts the half-open range [start, end) of src. When withAudio
	// is true and src has an audio track, the matching audio range is kept.
	Subclip(ctx context.Context, src *Clip, start, end float64, withAudio bool) (*Clip, error)

	// Concatenate joins clips in the given order into a single clip.
	Concatenate(ctx context.Context, clips []*Clip) (*Clip, error)

	// Resize scales clip to exactly width x height pixels.
	Resize(ctx context.Context, clip *Clip, width, height int) (*Clip, error)

	// EncodeGIF writes clip as an animated GIF to outputPath.
	EncodeGIF(ctx context.Context, clip *Clip, params GIFParams, outputPath string) error

	// EncodeMP4 writes clip as an H.264 MP4 to outputPath.
	EncodeMP4(ctx context.Context, clip *Clip, params MP4Params, outputPath string) error
}

// GIFParams are the encoder settings for GIF output.
type GIFParams struct {
	// FPS is the output frame rate.
	FPS float64
	// Colors is the palette size (2-256).
	Colors int
	// Fuzz is the color-reduction tolerance in percent (1-100).
	Fuzz int
}

// MP4Params are the encoder settings for MP4 output.
type MP4Params struct {
	// FPS is the output frame rate.
	FPS float64
	// BitrateKbps is the video bitrate ceiling.
	BitrateKbps int
	// CRF is the x264 constant rate factor (lower is better).
	CRF int
	// AudioBitrateKbps enables an AAC track at this bitrate when positive.
	// Zero drops audio from the output.
	AudioBitrateKbps int
}
