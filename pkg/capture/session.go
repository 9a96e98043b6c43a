// Package capture implements the camera capture session: a small state
// machine that owns the live stream, waits for the stream to produce a
// displayable first frame, and rasterizes stills cropped to what the
// user sees on screen.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fieldlens/go-fieldlens/internal/log"
	"github.com/fieldlens/go-fieldlens/pkg/device"
)

// State is the capture session lifecycle state.
type State int

const (
	// StateIdle holds no camera resource.
	StateIdle State = iota
	// StateOpening is acquiring a stream and waiting for readiness.
	StateOpening
	// StateReady has a live stream with at least one decodable frame.
	StateReady
	// StateCapturing is transient; it always returns to StateReady so
	// the live preview stays visible behind any confirmation UI.
	StateCapturing
	// StateDenied means the user or OS refused camera permission.
	StateDenied
	// StateError means a hardware or timeout failure; see LastError.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateCapturing:
		return "capturing"
	case StateDenied:
		return "denied"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config holds session tunables.
type Config struct {
	// ReadinessTimeout bounds the wait for the first decodable frame.
	ReadinessTimeout time.Duration

	// PollInterval paces the readiness poll loop.
	PollInterval time.Duration

	// SwitchDelay is the settle time between releasing one camera and
	// opening the other when switching facing. The ordering (release
	// before reopen) is what matters; the value is empirical.
	SwitchDelay time.Duration
}

// DefaultConfig returns the standard session tunables.
func DefaultConfig() Config {
	return Config{
		ReadinessTimeout: 5 * time.Second,
		PollInterval:     100 * time.Millisecond,
		SwitchDelay:      300 * time.Millisecond,
	}
}

// Session sequences idle → opening → ready ⇄ capturing, with denied and
// error as terminal-until-closed failure states. At most one stream is
// held; every path into StateIdle releases it.
type Session struct {
	cfg Config
	gw  *device.Gateway

	mu      sync.Mutex
	state   State
	stream  device.Stream
	facing  device.Facing
	lastErr error

	// readMu serializes stream reads so a preview frame and a user
	// capture never hit the driver concurrently.
	readMu sync.Mutex

	// gen guards against stale results: any transition that abandons an
	// in-flight open bumps it, and the open's results are discarded.
	gen uint64

	// OnStateChange, when set, is called after every transition with
	// the new state. Called outside the session lock.
	OnStateChange func(State)
}

// NewSession creates an idle session over the gateway.
func NewSession(gw *device.Gateway, cfg Config) *Session {
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = DefaultConfig().ReadinessTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Session{cfg: cfg, gw: gw, state: StateIdle}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Facing returns the facing of the current or last open.
func (s *Session) Facing() device.Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// LastError returns the reason for the denied or error state.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Open acquires a camera stream for the preferred facing and waits for
// it to produce a displayable frame. Any previously held stream is
// released first. On failure the session lands in StateDenied (refused
// permission) or StateError (anything else, including the readiness
// watchdog).
func (s *Session) Open(ctx context.Context, facing device.Facing) error {
	s.mu.Lock()
	if s.state != StateIdle {
		// Opening over a live session always releases the prior
		// handle; the gateway enforces the same invariant below.
		s.stream = nil
	}
	s.gen++
	myGen := s.gen
	s.state = StateOpening
	s.facing = facing
	s.lastErr = nil
	s.mu.Unlock()
	s.notify(StateOpening)

	stream, err := s.gw.OpenStream(ctx, device.FallbackChain(facing))
	if err != nil {
		return s.failOpen(myGen, err)
	}
	if s.stale(myGen) {
		s.gw.ReleaseIf(stream)
		return ErrSessionClosed
	}

	if err := s.awaitFirstFrame(ctx, stream); err != nil {
		// ReleaseIf, not Release: a retry may have superseded this
		// open and be holding its own stream by now.
		s.gw.ReleaseIf(stream)
		return s.failOpen(myGen, err)
	}

	s.mu.Lock()
	if s.gen != myGen {
		// The session moved on while we were opening. Report, change
		// nothing; our stream is gone or owned by the successor.
		s.mu.Unlock()
		s.gw.ReleaseIf(stream)
		return ErrSessionClosed
	}
	s.stream = stream
	s.state = StateReady
	s.mu.Unlock()
	s.notify(StateReady)
	log.Info("capture session ready", "facing", string(facing))
	return nil
}

// stale reports whether the open identified by gen has been superseded.
func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

// failOpen records an open failure, unless the session already moved on.
func (s *Session) failOpen(myGen uint64, err error) error {
	s.mu.Lock()
	if s.gen != myGen {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastErr = err
	var next State
	if device.Classify(err) == device.ReasonPermissionDenied {
		next = StateDenied
	} else {
		next = StateError
	}
	s.state = next
	s.mu.Unlock()
	s.notify(next)
	log.Warn("capture session open failed", "state", next.String(), "err", err)
	return err
}

// awaitFirstFrame polls the stream until it decodes a frame with
// nonzero dimensions, bounded by the readiness watchdog. This replaces
// the browser-style fan-in of redundant readiness events with a single
// poll carrying the same timeout contract.
func (s *Session) awaitFirstFrame(ctx context.Context, st device.Stream) error {
	wctx, cancel := context.WithTimeout(ctx, s.cfg.ReadinessTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		f, err := st.Read(wctx)
		if err == nil && f.Width > 0 && f.Height > 0 {
			return nil
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err() // caller cancelled, not the watchdog
			}
			return ErrReadinessTimeout
		case <-ticker.C:
		}
	}
}

// Capture rasterizes the current frame into a JPEG still cropped to the
// display geometry and rotated upright. Only valid in StateReady; the
// session passes through StateCapturing and always returns to
// StateReady, on success and on capture-time failure alike.
func (s *Session) Capture(ctx context.Context, geom DisplayGeometry, orient Orientation) (*Image, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	s.state = StateCapturing
	myGen := s.gen
	stream := s.stream
	s.mu.Unlock()
	s.notify(StateCapturing)

	img, err := s.captureFrom(ctx, stream, geom, orient)

	s.mu.Lock()
	if s.gen != myGen {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.state = StateReady
	s.mu.Unlock()
	s.notify(StateReady)
	return img, err
}

// Preview renders a frame for the live dashboard feed. It does not
// take the capturing transition, so a preview in flight never makes a
// user capture report the camera as busy.
func (s *Session) Preview(ctx context.Context, geom DisplayGeometry) (*Image, error) {
	s.mu.Lock()
	if s.state != StateReady && s.state != StateCapturing {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	stream := s.stream
	s.mu.Unlock()

	return s.captureFrom(ctx, stream, geom, OrientPortrait)
}

func (s *Session) captureFrom(ctx context.Context, stream device.Stream, geom DisplayGeometry, orient Orientation) (*Image, error) {
	s.readMu.Lock()
	frame, err := stream.Read(ctx)
	s.readMu.Unlock()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrNotReady
	}
	if frame.Width == 0 || frame.Height == 0 {
		return nil, ErrNotReady
	}
	return Render(frame.Image, geom, orient)
}

// SwitchFacing performs a full close-then-reopen with the new facing.
// Swapping physical inputs changes the hardware path, so a live-track
// replace is not attempted; a short settle delay after release avoids
// contending with the driver's own teardown.
func (s *Session) SwitchFacing(ctx context.Context, facing device.Facing) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrBadState
	}
	s.mu.Unlock()

	s.Close()

	if s.cfg.SwitchDelay > 0 {
		select {
		case <-time.After(s.cfg.SwitchDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return s.Open(ctx, facing)
}

// Close releases the camera resource and returns the session to
// StateIdle from any state. Idempotent. Must be called on unmount and
// shutdown paths; the hardware grant is not reclaimed otherwise.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.state = StateIdle
	s.stream = nil
	s.lastErr = nil
	s.mu.Unlock()

	s.gw.Release()
	s.notify(StateIdle)
	log.Debug("capture session closed")
}

// Suspend releases the camera when the hosting UI is hidden or
// backgrounded. Same contract as Close.
func (s *Session) Suspend() {
	s.Close()
}

func (s *Session) notify(st State) {
	if s.OnStateChange != nil {
		s.OnStateChange(st)
	}
}
