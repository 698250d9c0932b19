package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// DefaultAlpha is the weight of class colours in the overlay.
const DefaultAlpha = 0.5

// Overlay blends class colours over img. The grid is stretched to the image
// with nearest-neighbour sampling; classes without a palette colour leave
// the photo untouched.
func Overlay(img image.Image, grid *entity.LabelGrid, classes *entity.ClassMap, palette entity.Palette, alpha float64) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	if grid.Empty() {
		return out
	}

	byID := make(map[int]color.RGBA, len(palette))
	for name, c := range palette {
		if id, ok := classes.ID(name); ok {
			byID[id] = c
		}
	}
	alpha = min(max(alpha, 0), 1)

	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		gy := y * grid.Rows() / h
		for x := 0; x < w; x++ {
			c, ok := byID[grid.At(gy, x*grid.Cols()/w)]
			if !ok {
				continue
			}
			i := out.PixOffset(x, y)
			out.Pix[i+0] = blend(out.Pix[i+0], c.R, alpha)
			out.Pix[i+1] = blend(out.Pix[i+1], c.G, alpha)
			out.Pix[i+2] = blend(out.Pix[i+2], c.B, alpha)
		}
	}
	return out
}

func blend(base, over uint8, alpha float64) uint8 {
	return uint8(float64(base)*(1-alpha) + float64(over)*alpha + 0.5)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OverlayRenderer renders overlays with a fixed class map and palette.
type OverlayRenderer struct {
	Classes *entity.ClassMap
	Palette entity.Palette
	Alpha   float64
}

var _ port.OverlayRenderer = (*OverlayRenderer)(nil)

// NewOverlayRenderer creates a renderer using DefaultAlpha.
func NewOverlayRenderer(classes *entity.ClassMap, palette entity.Palette) *OverlayRenderer {
	return &OverlayRenderer{Classes: classes, Palette: palette, Alpha: DefaultAlpha}
}

// Render returns the overlay image.
func (r *OverlayRenderer) Render(img image.Image, grid *entity.LabelGrid) image.Image {
	return Overlay(img, grid, r.Classes, r.Palette, r.Alpha)
}

// Encode returns img as PNG bytes.
func (r *OverlayRenderer) Encode(img image.Image) ([]byte, error) {
	return EncodePNG(img)
}
