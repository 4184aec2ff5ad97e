package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultFrameRate is assumed when a video stream reports no usable rate.
const DefaultFrameRate = 24.0

// ProbeResult holds the stream metadata the pipeline needs from a source.
type ProbeResult struct {
	// Duration is the container duration in seconds.
	Duration float64
	// FPS is the primary video stream frame rate.
	FPS float64
	// Width and Height are the primary video stream dimensions.
	Width  int
	Height int
	// VideoCodec is the primary video stream codec name.
	VideoCodec string
	// HasAudio reports whether at least one audio stream exists.
	HasAudio bool
	// Streams counts all streams in the container.
	Streams int
}

// ffprobe JSON wire types

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

// ParseProbeJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseProbeJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	result := &ProbeResult{
		Duration: parseFloat(raw.Format.Duration),
		Streams:  len(raw.Streams),
	}

	var video *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			result.HasAudio = true
		}
	}
	if video == nil {
		return nil, ErrNoVideoStream
	}

	result.Width = video.Width
	result.Height = video.Height
	result.VideoCodec = video.CodecName
	result.FPS = streamFrameRate(video)
	if result.Duration <= 0 {
		result.Duration = parseFloat(video.Duration)
	}

	return result, nil
}

// streamFrameRate prefers r_frame_rate, then avg_frame_rate, then the default.
func streamFrameRate(s *ffprobeStream) float64 {
	for _, candidate := range []string{s.RFrameRate, s.AvgFrameRate} {
		if fps, ok := ParseFrameRate(candidate); ok {
			return fps
		}
	}
	return DefaultFrameRate
}

// ParseFrameRate parses either a rational "num/den" rate such as
// "24000/1001" or a plain decimal. It reports false for empty, malformed
// or non-positive values (ffprobe emits "0/0" for unknown rates).
func ParseFrameRate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	num, den, found := strings.Cut(s, "/")
	if !found {
		fps, err := strconv.ParseFloat(s, 64)
		if err != nil || fps <= 0 {
			return 0, false
		}
		return fps, true
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil || d == 0 {
		return 0, false
	}
	fps := n / d
	if fps <= 0 {
		return 0, false
	}
	return fps, true
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
