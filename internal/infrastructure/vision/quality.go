package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// QualityValidator rejects photos that do not decode or are too small.
// Exposure, glare and (with the gocv build tag) blur are advisory: they are
// logged, and only reject the photo when Strict is set.
type QualityValidator struct {
	MinImageSide          int
	MinSharpnessEdgeRatio float64
	MaxOverexposedRatio   float64
	MaxUnderexposedRatio  float64
	MaxGlareRatio         float64

	Strict bool
	Logger port.Logger
}

// NewQualityValidator returns a validator with thresholds tuned for
// street-level entrance photos.
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		MinImageSide:          256,
		MinSharpnessEdgeRatio: 0.008,
		MaxOverexposedRatio:   0.35,
		MaxUnderexposedRatio:  0.45,
		MaxGlareRatio:         0.08,
	}
}

// Decode decodes data in any supported format.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", entity.ErrImageInvalid)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageInvalid, err)
	}
	return img, nil
}

// exposure holds the pixel shares used by the exposure and glare checks.
type exposure struct {
	over, under, glare float64
}

// measureExposure counts bright (>250), dark (<20) and glare pixels
// (saturation <40 and value >245 on a 0-255 scale).
func measureExposure(img image.Image) exposure {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return exposure{}
	}
	var over, under, glare int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r, g, bl := int(r16>>8), int(g16>>8), int(b16>>8)

			gray := (299*r + 587*g + 114*bl) / 1000
			if gray > 250 {
				over++
			}
			if gray < 20 {
				under++
			}

			hi, lo := max(r, g, bl), min(r, g, bl)
			sat := 0
			if hi > 0 {
				sat = 255 * (hi - lo) / hi
			}
			if sat < 40 && hi > 245 {
				glare++
			}
		}
	}
	n := float64(total)
	return exposure{over: float64(over) / n, under: float64(under) / n, glare: float64(glare) / n}
}

func (v *QualityValidator) checkSize(w, h int) error {
	if w < v.MinImageSide || h < v.MinImageSide {
		return fmt.Errorf("%w: image is too small (%dx%d)", entity.ErrImageInvalid, w, h)
	}
	return nil
}

func (v *QualityValidator) checkExposure(e exposure) error {
	if e.over > v.MaxOverexposedRatio {
		return fmt.Errorf("%w: overexposed image (ratio=%.4f)", entity.ErrImageInvalid, e.over)
	}
	if e.under > v.MaxUnderexposedRatio {
		return fmt.Errorf("%w: underexposed image (ratio=%.4f)", entity.ErrImageInvalid, e.under)
	}
	if e.glare > v.MaxGlareRatio {
		return fmt.Errorf("%w: too much glare (ratio=%.4f)", entity.ErrImageInvalid, e.glare)
	}
	return nil
}

// advise turns a failed advisory check into a log line unless v is strict.
func (v *QualityValidator) advise(err error) error {
	if err == nil || v.Strict {
		return err
	}
	if v.Logger != nil {
		v.Logger.Printf("quality warning: %v", err)
	}
	return nil
}
