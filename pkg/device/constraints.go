package device

import "fmt"

// Default resolution requested by the first (most demanding) attempt.
const (
	PreferredWidth  = 1280
	PreferredHeight = 720
)

// Constraints describes one camera open attempt.
type Constraints struct {
	// Facing is the requested camera. FacingAny matches anything.
	Facing Facing

	// Width and Height request a capture resolution. Zero means
	// "whatever the driver gives us".
	Width  int
	Height int

	// Exact makes the resolution a hard requirement: the attempt fails
	// with ErrOverconstrained if the driver negotiates something else.
	Exact bool
}

// String renders the constraint set for logs.
func (c Constraints) String() string {
	if c.Width == 0 && c.Height == 0 {
		return fmt.Sprintf("facing=%s", c.Facing)
	}
	return fmt.Sprintf("facing=%s %dx%d exact=%v", c.Facing, c.Width, c.Height, c.Exact)
}

// FallbackChain returns the standard ordered attempt list for a preferred
// facing: ideal facing at the preferred resolution, then ideal facing with
// any resolution, then the opposite camera, then any camera at all. Each
// entry is strictly more permissive than the one before it.
func FallbackChain(preferred Facing) []Constraints {
	if preferred == FacingAny {
		return []Constraints{
			{Facing: FacingAny, Width: PreferredWidth, Height: PreferredHeight},
			{Facing: FacingAny},
		}
	}
	return []Constraints{
		{Facing: preferred, Width: PreferredWidth, Height: PreferredHeight},
		{Facing: preferred},
		{Facing: preferred.Opposite()},
		{Facing: FacingAny},
	}
}
