package preview

// SectionInfo records a section that made it into the output.
type SectionInfo struct {
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	// Frames is derived from Duration and the sampling rate.
	Frames int `json:"frames"`
}

// Result describes a produced preview. It is built once per generation and
// handed out by value.
type Result struct {
	Path          string        `json:"path"`
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	Format        Format        `json:"format"`
	Sections      []SectionInfo `json:"sections"`
	TotalFrames   int           `json:"totalFrames"`
	TotalDuration float64       `json:"totalDuration"`
	// HasAudio and AudioQuality are only set for MP4 output.
	HasAudio     *bool   `json:"hasAudio,omitempty"`
	AudioQuality *int    `json:"audioQuality,omitempty"`
	OriginalFPS  float64 `json:"originalFps"`
	OutputFPS    float64 `json:"outputFps"`
	// Cached is true when the result was served from the cache directory.
	Cached bool `json:"cached"`
}

// sectionInfos derives per-section frame counts at framesPerSection per
// sectionDuration seconds.
func sectionInfos(sections []Section, framesPerSection, sectionDuration float64) []SectionInfo {
	infos := make([]SectionInfo, len(sections))
	for i, s := range sections {
		infos[i] = SectionInfo{
			StartTime: s.StartTime,
			Duration:  s.Duration,
			Frames:    frameCount(s.Duration, framesPerSection, sectionDuration),
		}
	}
	return infos
}

func frameCount(duration, framesPerSection, sectionDuration float64) int {
	if sectionDuration <= 0 {
		return 0
	}
	return int(duration * framesPerSection / sectionDuration)
}

// audioFields returns the MP4-only audio descriptors.
func audioFields(format Format, hasAudio bool, includeAudio bool, audioQuality int) (*bool, *int) {
	if format != FormatMP4 {
		return nil, nil
	}
	var quality *int
	if includeAudio {
		q := audioQuality
		quality = &q
	}
	return &hasAudio, quality
}
