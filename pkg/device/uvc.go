package device

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Facing-to-index preference. UVC enumeration has no notion of facing,
// so we follow the common layout: the rear/primary camera enumerates
// first, a secondary user-facing camera second.
var facingIndices = map[Facing][]int{
	FacingBack:  {0, 2},
	FacingFront: {1, 3},
	FacingAny:   {0, 1, 2, 3},
}

// UVC is the real camera backend on top of gocv/OpenCV.
type UVC struct{}

// NewUVC creates the gocv-backed camera backend.
func NewUVC() *UVC {
	return &UVC{}
}

// Open performs a single open attempt for the given constraints.
func (u *UVC) Open(ctx context.Context, c Constraints) (Stream, error) {
	indices := facingIndices[c.Facing]
	if len(indices) == 0 {
		indices = facingIndices[FacingAny]
	}

	var lastErr error
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := openIndex(idx, c)
		if err != nil {
			lastErr = err
			continue
		}
		return s, nil
	}
	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return nil, lastErr
}

func openIndex(idx int, c Constraints) (Stream, error) {
	if err := probeDeviceNode(idx); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		// The node exists but OpenCV could not claim it. The usual
		// cause is another process holding the pipeline.
		if nodeExists(idx) {
			return nil, fmt.Errorf("%w: index %d: %v", ErrDeviceBusy, idx, err)
		}
		return nil, fmt.Errorf("%w: index %d", ErrNotFound, idx)
	}

	if c.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	}
	if c.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	gotW := int(vc.Get(gocv.VideoCaptureFrameWidth))
	gotH := int(vc.Get(gocv.VideoCaptureFrameHeight))
	if c.Exact && c.Width > 0 && (gotW != c.Width || gotH != c.Height) {
		vc.Close()
		return nil, fmt.Errorf("%w: wanted %dx%d, driver offers %dx%d",
			ErrOverconstrained, c.Width, c.Height, gotW, gotH)
	}

	return &uvcStream{vc: vc, width: gotW, height: gotH}, nil
}

// probeDeviceNode distinguishes missing devices and permission problems
// before handing the index to OpenCV, which collapses both into a
// generic open failure.
func probeDeviceNode(idx int) error {
	path := devicePath(idx)
	if path == "" {
		return nil // no probe available on this platform
	}
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrDeviceBusy, path, err)
	}
	f.Close()
	return nil
}

func devicePath(idx int) string {
	if _, err := os.Stat("/dev"); err != nil {
		return ""
	}
	return fmt.Sprintf("/dev/video%d", idx)
}

func nodeExists(idx int) bool {
	path := devicePath(idx)
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// uvcStream wraps a gocv.VideoCapture as a Stream.
type uvcStream struct {
	vc     *gocv.VideoCapture
	width  int
	height int

	mu     sync.Mutex
	closed bool
}

func (s *uvcStream) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := s.vc.Read(&mat); !ok || mat.Empty() {
		return Frame{}, fmt.Errorf("device: no frame decoded")
	}

	img, err := mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("device: frame convert: %w", err)
	}

	b := img.Bounds()
	return Frame{
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
		At:     time.Now(),
	}, nil
}

func (s *uvcStream) Dimensions() (int, int) {
	return s.width, s.height
}

func (s *uvcStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *uvcStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.vc.Close()
}
