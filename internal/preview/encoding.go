package preview

import (
	"math"

	"github.com/maauso/clipthumb/internal/media"
)

// Encoder parameter bounds.
const (
	maxOutputFPS = 30.0
	minGIFFPS    = 1.0

	minGIFColors = 128
	gifColorSpan = 128
	maxGIFFuzz   = 50
	gifFuzzSpan  = 40

	minBitrateKbps  = 500
	bitrateSpanKbps = 4500
	maxCRF          = 31
	crfSpan         = 30
)

// EncodingParams are the concrete encoder settings derived from Options.
// Only the fields for Format are meaningful.
type EncodingParams struct {
	Format Format
	// FPS is the output frame rate.
	FPS float64
	// GIF palette size and fuzz.
	Colors int
	Fuzz   int
	// MP4 bitrate ceiling and constant rate factor.
	BitrateKbps int
	CRF         int
}

// MapEncoding fans the quality knob out into encoder parameters.
//
// The target frame rate is framesPerSection/sectionDuration, clamped to
// [1,30] for GIF and to min(sourceFPS, 30) for MP4. Higher quality means
// more colors and less fuzz for GIF, and a higher bitrate and lower CRF
// for MP4.
func MapEncoding(quality int, framesPerSection, sectionDuration float64, format Format, sourceFPS float64) EncodingParams {
	q := float64(quality)
	target := framesPerSection / sectionDuration

	p := EncodingParams{Format: format}
	switch format {
	case FormatMP4:
		p.FPS = math.Min(sourceFPS, math.Min(maxOutputFPS, target))
		p.BitrateKbps = int(math.Round(minBitrateKbps + bitrateSpanKbps*q/100))
		p.CRF = int(math.Round(maxCRF - crfSpan*q/100))
	default:
		p.FPS = math.Max(minGIFFPS, math.Min(maxOutputFPS, target))
		p.Colors = int(math.Round(minGIFColors + gifColorSpan*q/100))
		p.Fuzz = int(math.Round(maxGIFFuzz - gifFuzzSpan*q/100))
	}
	return p
}

// GIF returns the media engine settings for GIF output.
func (p EncodingParams) GIF() media.GIFParams {
	return media.GIFParams{FPS: p.FPS, Colors: p.Colors, Fuzz: p.Fuzz}
}

// MP4 returns the media engine settings for MP4 output. A positive
// audioKbps requests an audio track.
func (p EncodingParams) MP4(audioKbps int) media.MP4Params {
	return media.MP4Params{
		FPS:              p.FPS,
		BitrateKbps:      p.BitrateKbps,
		CRF:              p.CRF,
		AudioBitrateKbps: audioKbps,
	}
}
