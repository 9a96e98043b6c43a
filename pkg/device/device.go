// Package device provides access to physical cameras behind a small
// gateway that enforces exclusive ownership of the capture pipeline.
//
// A Backend performs a single open attempt for one set of constraints.
// The Gateway walks an ordered fallback chain of constraints, returns the
// first stream that opens, and guarantees that at most one stream is live
// at any time: most devices expose exactly one exclusive capture pipeline,
// and holding two handles blocks every subsequent open.
package device

import (
	"context"
	"image"
	"time"
)

// Facing selects which physical camera a constraint set requests.
type Facing string

const (
	// FacingBack is the rear ("environment") camera.
	FacingBack Facing = "environment"
	// FacingFront is the user-facing camera.
	FacingFront Facing = "user"
	// FacingAny accepts whatever camera the backend finds first.
	FacingAny Facing = "any"
)

// Opposite returns the other physical camera.
// FacingAny has no opposite and is returned unchanged.
func (f Facing) Opposite() Facing {
	switch f {
	case FacingBack:
		return FacingFront
	case FacingFront:
		return FacingBack
	default:
		return FacingAny
	}
}

// Frame is a single decoded video frame.
type Frame struct {
	Image  image.Image
	Width  int
	Height int
	At     time.Time
}

// Stream is a live camera stream. It must be closed explicitly;
// the hardware handle is not released by garbage collection.
type Stream interface {
	// Read decodes the next frame. It blocks until a frame is
	// available, the context is done, or the stream fails.
	Read(ctx context.Context) (Frame, error)

	// Dimensions returns the negotiated frame size. Both values are
	// zero until the stream has produced its first frame metadata.
	Dimensions() (width, height int)

	// Live reports whether the stream still holds the hardware handle.
	Live() bool

	// Close releases the hardware handle. Idempotent.
	Close() error
}

// Backend performs a single open attempt for one constraint set.
// It does not fall back; that is the Gateway's job.
type Backend interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}
