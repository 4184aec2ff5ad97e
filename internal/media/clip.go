package media

import (
	"os"
	"sync"
)

// Clip is a handle on a piece of video produced or opened by an Engine.
// Clips backed by intermediate files own them and remove them on Close.
type Clip struct {
	// Path is the file backing this clip.
	Path string
	// Duration is the clip length in seconds.
	Duration float64
	// FPS is the native frame rate.
	FPS float64
	// Width is the frame width in pixels.
	Width int
	// Height is the frame height in pixels.
	Height int
	// HasAudio reports whether the clip carries an audio track.
	HasAudio bool

	once    sync.Once
	release func() error
	err     error
}

// NewClip creates a clip whose Close calls release exactly once.
// A nil release makes Close a no-op.
func NewClip(path string, duration, fps float64, width, height int, hasAudio bool, release func() error) *Clip {
	return &Clip{
		Path:     path,
		Duration: duration,
		FPS:      fps,
		Width:    width,
		Height:   height,
		HasAudio: hasAudio,
		release:  release,
	}
}

// ownedClip creates a clip that deletes its backing file on Close.
func ownedClip(path string, duration, fps float64, width, height int, hasAudio bool) *Clip {
	return NewClip(path, duration, fps, width, height, hasAudio, func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

// Close releases the resources held by the clip. It is safe to call more
// than once; later calls return the first result.
func (c *Clip) Close() error {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		if c.release != nil {
			c.err = c.release()
		}
	})
	return c.err
}
