//go:build gocv

package vision

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

var _ port.ImageValidator = (*QualityValidator)(nil)

// Validate decodes data with OpenCV, enforces the minimum size and runs
// the advisory blur and exposure checks.
func (v *QualityValidator) Validate(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if err == nil {
			mat.Close()
		}
		return nil, fmt.Errorf("%w: failed to decode image", entity.ErrImageInvalid)
	}
	defer mat.Close()

	if err := v.checkSize(mat.Cols(), mat.Rows()); err != nil {
		return nil, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 80, 160)
	if r := ratioOfMask(edges); r < v.MinSharpnessEdgeRatio {
		if err := v.advise(fmt.Errorf("%w: image is blurry (edge_ratio=%.4f)", entity.ErrImageInvalid, r)); err != nil {
			return nil, err
		}
	}

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, 250, 255, gocv.ThresholdBinary)

	dark := gocv.NewMat()
	defer dark.Close()
	gocv.Threshold(gray, &dark, 20, 255, gocv.ThresholdBinaryInv)

	glare, err := glareRatio(mat)
	if err != nil {
		return nil, err
	}
	if err := v.advise(v.checkExposure(exposure{over: ratioOfMask(bright), under: ratioOfMask(dark), glare: glare})); err != nil {
		return nil, err
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageInvalid, err)
	}
	return img, nil
}

// glareRatio is the share of low-saturation, high-value pixels.
func glareRatio(mat gocv.Mat) (float64, error) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(mat, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	for i := range channels {
		defer channels[i].Close()
	}
	if len(channels) < 3 {
		return 0, fmt.Errorf("%w: invalid hsv channels", entity.ErrImageInvalid)
	}

	lowSat := gocv.NewMat()
	defer lowSat.Close()
	gocv.Threshold(channels[1], &lowSat, 40, 255, gocv.ThresholdBinaryInv)

	highVal := gocv.NewMat()
	defer highVal.Close()
	gocv.Threshold(channels[2], &highVal, 245, 255, gocv.ThresholdBinary)

	glare := gocv.NewMat()
	defer glare.Close()
	gocv.BitwiseAnd(lowSat, highVal, &glare)
	return ratioOfMask(glare), nil
}

func ratioOfMask(mask gocv.Mat) float64 {
	total := mask.Cols() * mask.Rows()
	if total <= 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}
