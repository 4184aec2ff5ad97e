package preview

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/maauso/clipthumb/internal/media"
)

// mockEngine implements media.Engine for testing. Subclip, Concatenate and
// Resize synthesise clips when the expectation returns a nil clip and no
// error, so tests only spell out the calls they care about. Every clip's
// release returns releaseErr.
type mockEngine struct {
	mock.Mock
	opened     atomic.Int32
	released   atomic.Int32
	releaseErr error
}

func (m *mockEngine) clip(path string, duration, fps float64, w, h int, hasAudio bool) *media.Clip {
	m.opened.Add(1)
	return media.NewClip(path, duration, fps, w, h, hasAudio, func() error {
		m.released.Add(1)
		return m.releaseErr
	})
}

func (m *mockEngine) Probe(ctx context.Context, path string) (*media.ProbeResult, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.ProbeResult), args.Error(1)
}

func (m *mockEngine) Open(ctx context.Context, path string) (*media.Clip, error) {
	args := m.Called(ctx, path)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	info := args.Get(0).(*media.ProbeResult)
	return m.clip(path, info.Duration, info.FPS, info.Width, info.Height, info.HasAudio), nil
}

func (m *mockEngine) Subclip(ctx context.Context, src *media.Clip, start, end float64, withAudio bool) (*media.Clip, error) {
	args := m.Called(ctx, src, start, end, withAudio)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return m.clip("subclip", end-start, src.FPS, src.Width, src.Height, withAudio && src.HasAudio), nil
}

func (m *mockEngine) Concatenate(ctx context.Context, clips []*media.Clip) (*media.Clip, error) {
	args := m.Called(ctx, clips)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	duration := 0.0
	hasAudio := true
	for _, c := range clips {
		duration += c.Duration
		hasAudio = hasAudio && c.HasAudio
	}
	first := clips[0]
	return m.clip("concat", duration, first.FPS, first.Width, first.Height, hasAudio), nil
}

func (m *mockEngine) Resize(ctx context.Context, clip *media.Clip, width, height int) (*media.Clip, error) {
	args := m.Called(ctx, clip, width, height)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return m.clip("resized", clip.Duration, clip.FPS, width, height, clip.HasAudio), nil
}

func (m *mockEngine) EncodeGIF(ctx context.Context, clip *media.Clip, params media.GIFParams, outputPath string) error {
	args := m.Called(ctx, clip, params, outputPath)
	return args.Error(0)
}

func (m *mockEngine) EncodeMP4(ctx context.Context, clip *media.Clip, params media.MP4Params, outputPath string) error {
	args := m.Called(ctx, clip, params, outputPath)
	return args.Error(0)
}
