package capture

// Orientation is a discrete device rotation angle in degrees.
// It is read at capture time to keep exported bytes upright; it is
// never persisted.
type Orientation int

const (
	OrientPortrait           Orientation = 0
	OrientLandscapeLeft      Orientation = 90
	OrientPortraitUpsideDown Orientation = 180
	OrientLandscapeRight     Orientation = 270
)

// ParseOrientation normalizes an angle reported by a platform
// orientation API. Anything that is not a quarter turn falls back to
// portrait rather than failing the capture.
func ParseOrientation(deg int) Orientation {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	switch deg {
	case 90, 180, 270:
		return Orientation(deg)
	default:
		return OrientPortrait
	}
}

// Swaps reports whether the angle swaps width and height.
func (o Orientation) Swaps() bool {
	return o == OrientLandscapeLeft || o == OrientLandscapeRight
}
