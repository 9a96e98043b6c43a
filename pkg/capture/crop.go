package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// Output encoding parameters.
const (
	// MinOutputWidth floors the exported width so small preview boxes
	// still produce a usable still.
	MinOutputWidth = 640

	// JPEGQuality is the fixed encode quality.
	JPEGQuality = 92
)

// DisplayGeometry is the on-screen size of the preview element. Only
// its aspect ratio and scale matter; it is not a pixel-exact contract.
type DisplayGeometry struct {
	Width  int
	Height int
}

// Aspect returns width/height, or 0 for a degenerate box.
func (g DisplayGeometry) Aspect() float64 {
	if g.Width <= 0 || g.Height <= 0 {
		return 0
	}
	return float64(g.Width) / float64(g.Height)
}

// Image is a captured, encoded still. Immutable once produced.
type Image struct {
	Bytes    []byte
	MimeType string
	Width    int
	Height   int
}

// CropRect computes the source rectangle that emulates object-cover
// rendering: the crop has the display's aspect ratio and is centered
// on whichever source axis is longer than the display needs.
func CropRect(srcW, srcH int, aspect float64) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}
	}
	if aspect <= 0 {
		return image.Rect(0, 0, srcW, srcH)
	}

	srcAspect := float64(srcW) / float64(srcH)
	if srcAspect > aspect {
		// Source is wider than the display box: trim the sides.
		cw := int(float64(srcH)*aspect + 0.5)
		if cw > srcW {
			cw = srcW
		}
		x := (srcW - cw) / 2
		return image.Rect(x, 0, x+cw, srcH)
	}
	// Source is taller: trim top and bottom.
	ch := int(float64(srcW)/aspect + 0.5)
	if ch > srcH {
		ch = srcH
	}
	y := (srcH - ch) / 2
	return image.Rect(0, y, srcW, y+ch)
}

// Render produces the exported still from a raw frame: center-crop to
// the display aspect, scale to the display size (floored at
// MinOutputWidth), rotate by the device orientation so the bytes are
// upright, and encode as JPEG.
func Render(src image.Image, geom DisplayGeometry, orient Orientation) (*Image, error) {
	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("%w: source has zero dimensions", ErrNotReady)
	}

	aspect := geom.Aspect()
	if aspect == 0 {
		aspect = float64(srcW) / float64(srcH)
	}
	crop := CropRect(srcW, srcH, aspect).Add(b.Min)

	outW := geom.Width
	if outW < MinOutputWidth {
		outW = MinOutputWidth
	}
	if outW > crop.Dx() {
		outW = crop.Dx() // never upscale past the sensor
	}
	outH := int(float64(outW)/aspect + 0.5)
	if outH < 1 {
		outH = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), src, crop, xdraw.Src, nil)

	out := rotate(scaled, orient)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	ob := out.Bounds()
	return &Image{
		Bytes:    buf.Bytes(),
		MimeType: "image/jpeg",
		Width:    ob.Dx(),
		Height:   ob.Dy(),
	}, nil
}

// rotate turns the image so the exported bytes are upright in portrait
// convention. Quarter turns swap the output dimensions.
func rotate(src *image.RGBA, orient Orientation) *image.RGBA {
	if orient == OrientPortrait {
		return src
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	if orient.Swaps() {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
			switch orient {
			case OrientLandscapeLeft: // 90° clockwise
				dst.SetRGBA(h-1-y, x, c)
			case OrientPortraitUpsideDown:
				dst.SetRGBA(w-1-x, h-1-y, c)
			case OrientLandscapeRight: // 90° counter-clockwise
				dst.SetRGBA(y, w-1-x, c)
			}
		}
	}
	return dst
}
