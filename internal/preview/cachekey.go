package preview

import (
	"crypto/md5" // #nosec G501 - content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// sourcePrefixSize is how much of the source is hashed as a stand-in for
// its full content. Two files sharing this prefix and identical options
// share a key.
const sourcePrefixSize = 8192

// cacheKeyFields is the canonical, ordered subset of Options that affects
// output bytes. GIF palette knobs are absent because they are derived from
// Quality.
type cacheKeyFields struct {
	Quality             int          `json:"quality"`
	FramesPerSection    float64      `json:"framesPerSection"`
	Sections            [][2]float64 `json:"sections"`
	AutoSections        int          `json:"autoSections"`
	SectionDuration     float64      `json:"sectionDuration"`
	Width               int          `json:"width"`
	Height              int          `json:"height"`
	MaintainAspectRatio bool         `json:"maintainAspectRatio"`
	Format              Format       `json:"format"`
	IncludeAudio        bool         `json:"includeAudio"`
	AudioQuality        int          `json:"audioQuality"`
}

// CacheKey derives a stable identifier from the first 8 KiB of the source
// and the output-affecting options. The key has the form
// "<sourcePrefixHash>_<optionsHash>".
func CacheKey(sourcePath string, opts Options) (string, error) {
	sourceHash, err := hashSourcePrefix(sourcePath)
	if err != nil {
		return "", err
	}

	optionsHash, err := hashOptions(opts)
	if err != nil {
		return "", err
	}

	return sourceHash + "_" + optionsHash, nil
}

// CacheFileName returns the file name a preview is cached under.
func CacheFileName(key string, format Format) string {
	return key + "." + string(format)
}

func hashSourcePrefix(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is the caller's source video
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sourcePrefixSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read source prefix: %w", err)
	}

	sum := md5.Sum(buf[:n]) // #nosec G401
	return hex.EncodeToString(sum[:]), nil
}

func hashOptions(opts Options) (string, error) {
	fields := cacheKeyFields{
		Quality:             opts.Quality,
		FramesPerSection:    opts.FramesPerSection,
		Sections:            make([][2]float64, 0, len(opts.Sections)),
		AutoSections:        opts.AutoSections,
		SectionDuration:     opts.SectionDuration,
		Width:               opts.Width,
		Height:              opts.Height,
		MaintainAspectRatio: opts.MaintainAspectRatio,
		Format:              opts.Format,
		IncludeAudio:        opts.IncludeAudio,
		AudioQuality:        opts.AudioQuality,
	}
	for _, s := range opts.Sections {
		fields.Sections = append(fields.Sections, [2]float64{s.StartTime, s.Duration})
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}

	sum := md5.Sum(data) // #nosec G401
	return hex.EncodeToString(sum[:]), nil
}
