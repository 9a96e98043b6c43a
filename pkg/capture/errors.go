package capture

import "errors"

// Sentinel errors for the capture session.
var (
	// ErrNotReady is returned when capture is requested while the
	// session is not in StateReady, or the stream has no frame yet.
	// The session stays in its current state so the caller can retry.
	ErrNotReady = errors.New("capture: session not ready")

	// ErrReadinessTimeout means the stream never produced a displayable
	// frame within the watchdog bound.
	ErrReadinessTimeout = errors.New("capture: timed out waiting for first frame")

	// ErrEncodeFailed means the captured frame could not be encoded.
	// The session stays in StateReady so the user can retry.
	ErrEncodeFailed = errors.New("capture: image encode failed")

	// ErrSessionClosed is returned when an operation races a Close.
	ErrSessionClosed = errors.New("capture: session closed")

	// ErrBadState is returned for operations invalid in the current
	// state, such as switching facing while not ready.
	ErrBadState = errors.New("capture: invalid session state for operation")
)
