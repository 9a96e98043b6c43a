package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// MockBackend is a scripted camera backend for tests. Each Open call
// consumes the next entry of the script: a nil entry succeeds, a non-nil
// entry fails with that error. When the script is exhausted, every open
// succeeds. All open attempts are recorded for assertions.
type MockBackend struct {
	mu sync.Mutex

	script []error
	calls  []Constraints
	live   int

	// FrameWidth and FrameHeight size the generated frames.
	FrameWidth  int
	FrameHeight int

	// WarmupReads is the number of initial Read calls per stream that
	// fail before frames start flowing. Exercises readiness polling.
	WarmupReads int
}

// NewMock creates a mock backend producing 640x480 frames immediately.
func NewMock() *MockBackend {
	return &MockBackend{FrameWidth: 640, FrameHeight: 480}
}

// Script sets the per-attempt outcomes for subsequent Open calls.
func (m *MockBackend) Script(outcomes ...error) *MockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append([]error(nil), outcomes...)
	return m
}

// Open consumes the next scripted outcome.
func (m *MockBackend) Open(ctx context.Context, c Constraints) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, c)

	if len(m.script) > 0 {
		outcome := m.script[0]
		m.script = m.script[1:]
		if outcome != nil {
			return nil, outcome
		}
	}

	w, h := m.FrameWidth, m.FrameHeight
	if c.Width > 0 && c.Exact {
		w, h = c.Width, c.Height
	}
	m.live++
	return &mockStream{backend: m, width: w, height: h, warmup: m.WarmupReads}, nil
}

// Calls returns every constraint set passed to Open, in order.
func (m *MockBackend) Calls() []Constraints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Constraints(nil), m.calls...)
}

// LiveHandles returns the number of streams opened and not yet closed.
func (m *MockBackend) LiveHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

func (m *MockBackend) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live--
}

var errWarmingUp = errors.New("device: mock stream warming up")

type mockStream struct {
	backend *MockBackend
	width   int
	height  int

	mu     sync.Mutex
	warmup int
	closed bool
}

func (s *mockStream) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.warmup > 0 {
		s.warmup--
		return Frame{}, errWarmingUp
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	// A single reference pixel so crop tests can tell rotations apart.
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return Frame{Image: img, Width: s.width, Height: s.height, At: time.Now()}, nil
}

func (s *mockStream) Dimensions() (int, int) {
	return s.width, s.height
}

func (s *mockStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.backend.release()
	return nil
}

// BrokenStream is a stream whose reads always fail with the given
// error but whose dimensions report normally. Used to drive sessions
// into readiness timeout in tests.
type BrokenStream struct {
	Err error

	mu     sync.Mutex
	closed bool
}

func (s *BrokenStream) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.Err == nil {
		return Frame{}, fmt.Errorf("device: broken stream")
	}
	return Frame{}, s.Err
}

func (s *BrokenStream) Dimensions() (int, int) { return 0, 0 }

func (s *BrokenStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *BrokenStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
