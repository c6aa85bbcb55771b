package platform

import (
	"fmt"
	"sync"

	"github.com/wippyai/arm-runtime/errors"
)

// Screen receives composited frames.
type Screen interface {
	Size() (width, height uint32)
	Repaint(frame *Canvas) error
}

// MemoryScreen keeps the most recent frame in memory.
type MemoryScreen struct {
	last   *Canvas
	mu     sync.Mutex
	frames int
	width  uint32
	height uint32
}

// NewMemoryScreen returns a screen of the given size.
func NewMemoryScreen(width, height uint32) *MemoryScreen {
	return &MemoryScreen{width: width, height: height}
}

func (s *MemoryScreen) Size() (uint32, uint32) { return s.width, s.height }

// Repaint stores a copy of frame.
func (s *MemoryScreen) Repaint(frame *Canvas) error {
	if frame.Width != s.width || frame.Height != s.height {
		return errors.InvalidInput(errors.PhaseHost,
			fmt.Sprintf("frame %dx%d does not match screen %dx%d", frame.Width, frame.Height, s.width, s.height))
	}
	s.mu.Lock()
	s.last = frame.Clone()
	s.frames++
	s.mu.Unlock()
	return nil
}

// Last returns the last frame painted, or nil.
func (s *MemoryScreen) Last() *Canvas {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Frames returns how many frames were painted.
func (s *MemoryScreen) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
