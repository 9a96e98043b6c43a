package device

import (
	"errors"
	"fmt"
)

// Sentinel errors for camera open failures. Each maps to a distinct
// user-facing remedy, so they must stay distinguishable.
var (
	// ErrPermissionDenied means the OS or policy refused camera access.
	ErrPermissionDenied = errors.New("device: camera permission denied")

	// ErrNotFound means no camera matched the constraints.
	ErrNotFound = errors.New("device: camera not found")

	// ErrDeviceBusy means another process holds the capture pipeline.
	ErrDeviceBusy = errors.New("device: camera already in use")

	// ErrOverconstrained means the driver cannot satisfy an exact
	// resolution or facing requirement.
	ErrOverconstrained = errors.New("device: constraints not satisfiable")

	// ErrSecurityBlocked means a security policy forbids capture
	// (e.g. an insecure context or a managed-device restriction).
	ErrSecurityBlocked = errors.New("device: capture blocked by security policy")

	// ErrNoCameraAvailable is returned by the Gateway when every
	// constraint set in the fallback chain failed. It wraps the last
	// underlying failure.
	ErrNoCameraAvailable = errors.New("device: no camera available")

	// ErrStreamClosed is returned when reading from a released stream.
	ErrStreamClosed = errors.New("device: stream closed")
)

// Reason is the user-facing failure category.
type Reason string

const (
	ReasonPermissionDenied Reason = "permission-denied"
	ReasonNotFound         Reason = "not-found"
	ReasonBusy             Reason = "device-busy"
	ReasonOverconstrained  Reason = "overconstrained"
	ReasonSecurity         Reason = "security-policy"
	ReasonUnknown          Reason = "unknown"
)

// Remedy returns a short user-facing hint for the failure category.
func (r Reason) Remedy() string {
	switch r {
	case ReasonPermissionDenied:
		return "grant camera permission and try again"
	case ReasonNotFound:
		return "no camera detected on this device"
	case ReasonBusy:
		return "camera already in use by another application"
	case ReasonOverconstrained:
		return "requested camera mode not supported"
	case ReasonSecurity:
		return "camera access blocked by policy"
	default:
		return "camera failed to open"
	}
}

// Classify maps an open failure to its user-facing category.
func Classify(err error) Reason {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ReasonPermissionDenied
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrDeviceBusy):
		return ReasonBusy
	case errors.Is(err, ErrOverconstrained):
		return ReasonOverconstrained
	case errors.Is(err, ErrSecurityBlocked):
		return ReasonSecurity
	default:
		return ReasonUnknown
	}
}

// openError wraps the last failure of a fallback chain so callers can
// match both ErrNoCameraAvailable and the underlying sentinel.
type openError struct {
	attempts int
	last     error
}

func (e *openError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrNoCameraAvailable, e.attempts, e.last)
}

func (e *openError) Is(target error) bool {
	return target == ErrNoCameraAvailable
}

func (e *openError) Unwrap() error {
	return e.last
}
