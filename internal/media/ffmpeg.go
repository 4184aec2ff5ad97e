package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrNoClips is returned when no clips are provided for concatenation.
	ErrNoClips = errors.New("no clips provided")
	// ErrInvalidRange is returned when a sub-range is empty or starts before zero.
	ErrInvalidRange = errors.New("invalid range: end must be after start and start must not be negative")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoVideoStream is returned when a probed file has no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
)

// encoderThreads is the fixed x264 worker thread count for final encodes.
const encoderThreads = 2

// Compile-time check that FFmpegEngine implements Engine.
var _ Engine = (*FFmpegEngine)(nil)

// FFmpegEngine implements Engine using the ffmpeg and ffprobe CLIs.
// Intermediate clips are materialised as files in workDir.
type FFmpegEngine struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	workDir     string
}

// NewFFmpegEngine creates a new FFmpegEngine.
// Empty binary paths default to "ffmpeg" and "ffprobe" (found via PATH).
// If workDir is empty, os.TempDir() is used. The directory is created if it
// doesn't exist.
func NewFFmpegEngine(ffmpegPath, ffprobePath, workDir string) (*FFmpegEngine, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	return &FFmpegEngine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		workDir:     workDir,
	}, nil
}

// Probe runs a single ffprobe JSON call against path.
func (e *FFmpegEngine) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return ParseProbeJSON(stdout.Bytes())
}

// Open probes path and returns a non-owning clip on it.
func (e *FFmpegEngine) Open(ctx context.Context, path string) (*Clip, error) {
	info, err := e.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewClip(path, info.Duration, info.FPS, info.Width, info.Height, info.HasAudio, nil), nil
}

// Subclip extracts [start, end) of src into an intermediate file.
func (e *FFmpegEngine) Subclip(ctx context.Context, src *Clip, start, end float64, withAudio bool) (*Clip, error) {
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: start=%.3f, end=%.3f", ErrInvalidRange, start, end)
	}

	out, err := e.tempPath("subclip-*.mkv")
	if err != nil {
		return nil, err
	}

	keepAudio := withAudio && src.HasAudio
	if err := e.runFFmpeg(ctx, subclipArgs(src.Path, start, end-start, keepAudio, out)); err != nil {
		_ = os.Remove(out)
		return nil, err
	}

	return ownedClip(out, end-start, src.FPS, src.Width, src.Height, keepAudio), nil
}

// Concatenate joins clips in order. It first attempts a fast copy (no
// re-encoding) and falls back to re-encoding if the copy fails.
// A single clip is returned as a non-owning view of the same file.
func (e *FFmpegEngine) Concatenate(ctx context.Context, clips []*Clip) (*Clip, error) {
	if len(clips) == 0 {
		return nil, ErrNoClips
	}

	first := clips[0]
	if len(clips) == 1 {
		return NewClip(first.Path, first.Duration, first.FPS, first.Width, first.Height, first.HasAudio, nil), nil
	}

	paths := make([]string, len(clips))
	duration := 0.0
	hasAudio := true
	for i, c := range clips {
		paths[i] = c.Path
		duration += c.Duration
		hasAudio = hasAudio && c.HasAudio
	}

	listFile, err := e.createConcatList(paths)
	if err != nil {
		return nil, fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	out, err := e.tempPath("concat-*.mkv")
	if err != nil {
		return nil, err
	}

	if err := e.joinWithCopy(ctx, listFile, out); err != nil {
		if err := e.joinWithReencode(ctx, listFile, out, hasAudio); err != nil {
			_ = os.Remove(out)
			return nil, err
		}
	}

	return ownedClip(out, duration, first.FPS, first.Width, first.Height, hasAudio), nil
}

// Resize scales clip to exactly width x height.
func (e *FFmpegEngine) Resize(ctx context.Context, clip *Clip, width, height int) (*Clip, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}

	out, err := e.tempPath("resize-*.mkv")
	if err != nil {
		return nil, err
	}

	args := []string{
		"-y",
		"-i", clip.Path,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "12",
	}
	args = append(args, audioArgs(clip.HasAudio)...)
	args = append(args, out)

	if err := e.runFFmpeg(ctx, args); err != nil {
		_ = os.Remove(out)
		return nil, err
	}

	return ownedClip(out, clip.Duration, clip.FPS, width, height, clip.HasAudio), nil
}

// EncodeGIF writes clip as a palette-optimised animated GIF.
func (e *FFmpegEngine) EncodeGIF(ctx context.Context, clip *Clip, params GIFParams, outputPath string) error {
	return e.runFFmpeg(ctx, gifArgs(clip.Path, params, outputPath))
}

// EncodeMP4 writes clip as an H.264 MP4.
func (e *FFmpegEngine) EncodeMP4(ctx context.Context, clip *Clip, params MP4Params, outputPath string) error {
	return e.runFFmpeg(ctx, mp4Args(clip.Path, params, clip.HasAudio, outputPath))
}

// subclipArgs builds the extraction command for a single section. Seeking
// happens before -i, so precision is whatever the demuxer allows.
func subclipArgs(src string, start, duration float64, withAudio bool, out string) []string {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-map", "0:v:0",
	}
	if withAudio {
		args = append(args, "-map", "0:a:0")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "12",
	)
	args = append(args, audioArgs(withAudio)...)
	return append(args, out)
}

// gifArgs builds a single-pass palettegen/paletteuse graph. Fuzz has no
// direct ffmpeg equivalent; it drives the bayer dither scale instead.
func gifArgs(src string, p GIFParams, out string) []string {
	filter := fmt.Sprintf(
		"fps=%s,split[a][b];[a]palettegen=max_colors=%d:stats_mode=diff[p];[b][p]paletteuse=dither=bayer:bayer_scale=%d",
		formatRate(p.FPS), p.Colors, bayerScale(p.Fuzz),
	)
	return []string{
		"-y",
		"-i", src,
		"-filter_complex", filter,
		"-loop", "0",
		out,
	}
}

// mp4Args supplies CRF and bitrate together: CRF drives fidelity and the
// bitrate acts as a ceiling.
func mp4Args(src string, p MP4Params, clipHasAudio bool, out string) []string {
	bitrate := fmt.Sprintf("%dk", p.BitrateKbps)
	args := []string{
		"-y",
		"-i", src,
		"-r", formatRate(p.FPS),
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264",
		"-preset", "medium",
		"-threads", strconv.Itoa(encoderThreads),
		"-crf", strconv.Itoa(p.CRF),
		"-b:v", bitrate,
		"-maxrate", bitrate,
		"-bufsize", fmt.Sprintf("%dk", 2*p.BitrateKbps),
		"-pix_fmt", "yuv420p",
	}
	if p.AudioBitrateKbps > 0 && clipHasAudio {
		args = append(args, "-c:a", "aac", "-b:a", fmt.Sprintf("%dk", p.AudioBitrateKbps))
	} else {
		args = append(args, "-an")
	}
	return append(args, "-movflags", "+faststart", out)
}

func audioArgs(withAudio bool) []string {
	if withAudio {
		return []string{"-c:a", "aac", "-b:a", "192k"}
	}
	return []string{"-an"}
}

// bayerScale maps fuzz (1-100) onto paletteuse's bayer_scale (0-5).
func bayerScale(fuzz int) int {
	s := fuzz / 10
	if s < 0 {
		return 0
	}
	if s > 5 {
		return 5
	}
	return s
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// joinWithCopy attempts to concatenate clips using stream copy (no re-encoding).
func (e *FFmpegEngine) joinWithCopy(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile, // Input file list
		"-c", "copy", // Copy streams without re-encoding
		output,
	}
	return e.runFFmpeg(ctx, args)
}

// joinWithReencode concatenates clips by re-encoding with libx264/aac.
func (e *FFmpegEngine) joinWithReencode(ctx context.Context, listFile, output string, withAudio bool) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "12",
	}
	args = append(args, audioArgs(withAudio)...)
	args = append(args, output)
	return e.runFFmpeg(ctx, args)
}

// createConcatList creates a temporary file containing the list of clip files
// in the format required by ffmpeg's concat demuxer.
func (e *FFmpegEngine) createConcatList(paths []string) (string, error) {
	f, err := os.CreateTemp(e.workDir, "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// tempPath reserves a unique file name in the work directory.
func (e *FFmpegEngine) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(e.workDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create intermediate file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close intermediate file: %w", err)
	}
	return name, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (e *FFmpegEngine) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, append([]string{"-hide_banner", "-nostdin"}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
