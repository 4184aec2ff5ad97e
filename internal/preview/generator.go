package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/maauso/clipthumb/internal/media"
	"github.com/maauso/clipthumb/internal/storage"
)

// Pipeline stage names reported in GenerationError.
const (
	stageCache     = "cache"
	stageProbe     = "probe"
	stageOpen      = "open"
	stageExtract   = "extract"
	stageConcat    = "concatenate"
	stageResize    = "resize"
	stageEncode    = "encode"
	stageLoadCache = "load cache"
)

// Generator orchestrates preview generation: cache lookup, probing, section
// planning, extraction, concatenation, resizing and encoding. It runs every
// stage sequentially on the calling goroutine and never retries.
type Generator struct {
	engine   media.Engine
	cacheDir string
	newStore func(dir string) (storage.Storage, error)
	logger   *slog.Logger
}

// Option is a function that configures a Generator.
type Option func(*Generator)

// WithCacheDir sets the cache directory used when Options.CacheDir is empty.
func WithCacheDir(dir string) Option {
	return func(g *Generator) {
		if dir != "" {
			g.cacheDir = dir
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithStorage replaces the cache storage factory.
func WithStorage(newStore func(dir string) (storage.Storage, error)) Option {
	return func(g *Generator) {
		if newStore != nil {
			g.newStore = newStore
		}
	}
}

// NewGenerator creates a Generator driving engine. The cache directory
// defaults to storage.DefaultDir().
func NewGenerator(engine media.Engine, opts ...Option) *Generator {
	g := &Generator{
		engine:   engine,
		cacheDir: storage.DefaultDir(),
		newStore: newLocalStore,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func newLocalStore(dir string) (storage.Storage, error) {
	s, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CacheDir returns the default cache directory.
func (g *Generator) CacheDir() string {
	return g.cacheDir
}

// Generate builds a preview of sourcePath described by opts.
//
// ErrNotFound and ErrInvalidInput-class errors are returned unwrapped; any
// other failure is a *GenerationError. On failure the output file is removed
// best-effort, and on every exit path all media handles are released.
// Cleanup failures are logged and never returned.
func (g *Generator) Generate(ctx context.Context, sourcePath string, opts Options) (Result, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrNotFound, sourcePath)
		}
		return Result{}, &GenerationError{Stage: stageCache, Err: err}
	}
	if !opts.Format.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}

	dir := opts.CacheDir
	if dir == "" {
		dir = g.cacheDir
	}
	store, err := g.newStore(dir)
	if err != nil {
		return Result{}, &GenerationError{Stage: stageCache, Err: err}
	}

	key, err := CacheKey(sourcePath, opts)
	if err != nil {
		if isValidationError(err) {
			return Result{}, err
		}
		return Result{}, &GenerationError{Stage: stageCache, Err: err}
	}
	cachePath := store.Path(CacheFileName(key, opts.Format))

	logger := g.logger.With(
		slog.String("source", sourcePath),
		slog.String("cache_key", key),
	)

	hit, err := store.Exists(ctx, cachePath)
	if err != nil {
		return Result{}, &GenerationError{Stage: stageCache, Err: err}
	}
	if hit {
		logger.Info("cache hit", slog.String("path", cachePath))
		return g.loadFromCache(ctx, cachePath, opts, logger)
	}
	logger.Info("cache miss", slog.String("path", cachePath))

	r := &run{engine: g.engine, store: store, logger: logger}
	result, err := r.execute(ctx, sourcePath, cachePath, opts)

	logCleanup(logger, r.releaseHandles())
	if err != nil {
		if r.outputPath != "" {
			logCleanup(logger, []CleanupResult{r.removeOutput(ctx)})
		}
		if isValidationError(err) {
			return Result{}, err
		}
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			return Result{}, genErr
		}
		return Result{}, &GenerationError{Stage: "generate", Err: err}
	}

	logger.Info("preview generated",
		slog.String("path", result.Path),
		slog.Int("sections", len(result.Sections)),
		slog.Int("total_frames", result.TotalFrames),
	)
	return result, nil
}

// loadFromCache rebuilds what it can of a Result from a cached artifact.
// Section metadata is not stored alongside the artifact, so Sections is
// always empty. GIF artifacts are not reopened, leaving dimensions and
// duration at zero.
func (g *Generator) loadFromCache(ctx context.Context, cachePath string, opts Options, logger *slog.Logger) (Result, error) {
	res := Result{
		Path:     cachePath,
		Format:   opts.Format,
		Sections: []SectionInfo{},
		Cached:   true,
	}

	if opts.Format == FormatMP4 {
		clip, err := g.engine.Open(ctx, cachePath)
		if err != nil {
			return Result{}, &GenerationError{Stage: stageLoadCache, Err: err}
		}
		defer func() {
			logCleanup(logger, []CleanupResult{closeClip("cached artifact", clip)})
		}()

		res.Width = clip.Width
		res.Height = clip.Height
		res.TotalDuration = clip.Duration
		res.TotalFrames = frameCount(clip.Duration, opts.FramesPerSection, opts.SectionDuration)
	}

	res.HasAudio, res.AudioQuality = audioFields(opts.Format, opts.IncludeAudio, opts.IncludeAudio, opts.AudioQuality)
	return res, nil
}

// run holds the state of a single cache-miss generation.
type run struct {
	engine  media.Engine
	store   storage.Storage
	logger  *slog.Logger
	handles []handle
	// outputPath is set once encoding may have created a file.
	outputPath string
}

type handle struct {
	name string
	clip *media.Clip
}

func (r *run) track(name string, c *media.Clip) *media.Clip {
	r.handles = append(r.handles, handle{name: name, clip: c})
	return c
}

func (r *run) execute(ctx context.Context, sourcePath, cachePath string, opts Options) (Result, error) {
	probe, err := r.engine.Probe(ctx, sourcePath)
	if err != nil {
		return Result{}, &GenerationError{Stage: stageProbe, Err: err}
	}
	sourceFPS := probe.FPS

	src, err := r.engine.Open(ctx, sourcePath)
	if err != nil {
		return Result{}, &GenerationError{Stage: stageOpen, Err: err}
	}
	r.track("source", src)

	framesPerSection := opts.FramesPerSection
	if opts.AutoFrames {
		framesPerSection = float64(AutoFramesPerSection(sourceFPS, opts.SectionDuration))
	}

	planned := PlanSections(src.Duration, opts)
	if len(planned) == 0 {
		return Result{}, ErrNoSections
	}
	sections := ClampSections(planned, src.Duration)
	if len(sections) == 0 {
		return Result{}, ErrNoClips
	}
	r.logger.Debug("sections planned",
		slog.Int("planned", len(planned)),
		slog.Int("kept", len(sections)),
		slog.Float64("source_duration", src.Duration),
		slog.Float64("frames_per_section", framesPerSection),
	)

	withAudio := opts.Format == FormatMP4 && opts.IncludeAudio && src.HasAudio
	clips := make([]*media.Clip, 0, len(sections))
	for i, s := range sections {
		clip, err := r.engine.Subclip(ctx, src, s.StartTime, s.End(), withAudio)
		if err != nil {
			return Result{}, &GenerationError{Stage: stageExtract, Err: fmt.Errorf("section %d: %w", i, err)}
		}
		clips = append(clips, r.track(fmt.Sprintf("section %d", i), clip))
	}

	final, err := r.engine.Concatenate(ctx, clips)
	if err != nil {
		return Result{}, &GenerationError{Stage: stageConcat, Err: err}
	}
	r.track("concatenated", final)

	width, height, resize, err := ResolveDimensions(final.Width, final.Height, opts)
	if err != nil {
		return Result{}, &GenerationError{Stage: stageResize, Err: err}
	}
	if resize {
		resized, err := r.engine.Resize(ctx, final, width, height)
		if err != nil {
			return Result{}, &GenerationError{Stage: stageResize, Err: err}
		}
		final = r.track("resized", resized)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = cachePath
	}
	params := MapEncoding(opts.Quality, framesPerSection, opts.SectionDuration, opts.Format, sourceFPS)

	r.logger.Info("encoding preview",
		slog.String("format", string(opts.Format)),
		slog.String("output", outputPath),
		slog.Float64("fps", params.FPS),
	)

	r.outputPath = outputPath
	includeAudio := opts.IncludeAudio && final.HasAudio
	switch opts.Format {
	case FormatMP4:
		audioKbps := 0
		if includeAudio {
			audioKbps = opts.AudioQuality
		}
		err = r.engine.EncodeMP4(ctx, final, params.MP4(audioKbps), outputPath)
	default:
		err = r.engine.EncodeGIF(ctx, final, params.GIF(), outputPath)
	}
	if err != nil {
		return Result{}, &GenerationError{Stage: stageEncode, Err: err}
	}

	outW, outH := EncodedSize(opts.Format, final.Width, final.Height)
	result := Result{
		Path:          outputPath,
		Width:         outW,
		Height:        outH,
		Format:        opts.Format,
		Sections:      sectionInfos(sections, framesPerSection, opts.SectionDuration),
		TotalFrames:   frameCount(final.Duration, framesPerSection, opts.SectionDuration),
		TotalDuration: final.Duration,
		OriginalFPS:   sourceFPS,
		OutputFPS:     params.FPS,
	}
	result.HasAudio, result.AudioQuality = audioFields(opts.Format, includeAudio, opts.IncludeAudio, opts.AudioQuality)
	return result, nil
}

// ResolveDimensions computes the output size for a clip of srcW x srcH.
// With neither Width nor Height set no resize happens. With both set they
// are used verbatim. With one set the other follows the source aspect
// ratio, whether or not MaintainAspectRatio is set. MP4 targets are
// rounded down to even sizes, which is what the encoder writes.
func ResolveDimensions(srcW, srcH int, opts Options) (width, height int, resize bool, err error) {
	if opts.Width <= 0 && opts.Height <= 0 {
		return srcW, srcH, false, nil
	}
	if opts.Width > 0 && opts.Height > 0 {
		width, height = EncodedSize(opts.Format, opts.Width, opts.Height)
		return width, height, true, nil
	}
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, false, fmt.Errorf("%w: source is %dx%d", media.ErrInvalidDimensions, srcW, srcH)
	}

	width, height = opts.Width, opts.Height
	if width <= 0 {
		width = int(float64(srcW) * (float64(height) / float64(srcH)))
	} else {
		height = int(float64(srcH) * (float64(width) / float64(srcW)))
	}
	width, height = EncodedSize(opts.Format, width, height)
	return width, height, true, nil
}

// EncodedSize returns the frame size an encoder writes for a clip of
// width x height. yuv420p MP4 needs even sizes; GIF keeps them as-is.
func EncodedSize(format Format, width, height int) (int, int) {
	if format != FormatMP4 {
		return width, height
	}
	return width - width%2, height - height%2
}

// CleanupResult records the outcome of one best-effort cleanup action.
type CleanupResult struct {
	Resource string
	Err      error
}

// releaseHandles closes every tracked handle, newest first.
func (r *run) releaseHandles() []CleanupResult {
	results := make([]CleanupResult, 0, len(r.handles))
	for i := len(r.handles) - 1; i >= 0; i-- {
		h := r.handles[i]
		results = append(results, closeClip(h.name, h.clip))
	}
	r.handles = nil
	return results
}

// removeOutput deletes a partially written output. It runs on a context
// detached from cancellation so a cancelled generation still cleans up.
func (r *run) removeOutput(ctx context.Context) CleanupResult {
	err := r.store.Cleanup(context.WithoutCancel(ctx), []string{r.outputPath})
	return CleanupResult{Resource: r.outputPath, Err: err}
}

func closeClip(name string, c *media.Clip) CleanupResult {
	return CleanupResult{Resource: name, Err: c.Close()}
}

func logCleanup(logger *slog.Logger, results []CleanupResult) {
	for _, res := range results {
		if res.Err != nil {
			logger.Warn("cleanup failed",
				slog.String("resource", res.Resource),
				slog.String("error", res.Err.Error()),
			)
		}
	}
}
