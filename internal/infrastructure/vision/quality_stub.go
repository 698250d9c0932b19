//go:build !gocv

package vision

import (
	"context"
	"image"

	"ablemap/internal/domain/port"
)

var _ port.ImageValidator = (*QualityValidator)(nil)

// Validate decodes data, enforces the minimum size and runs the advisory
// exposure checks.
func (v *QualityValidator) Validate(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := v.checkSize(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
		return nil, err
	}
	if err := v.advise(v.checkExposure(measureExposure(img))); err != nil {
		return nil, err
	}
	return img, nil
}
