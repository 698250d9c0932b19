//go:build !onnx

package vision

import (
	"context"
	"fmt"
	"image"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// ONNXSegmenter is unavailable without the onnx build tag.
type ONNXSegmenter struct{}

var _ port.Segmenter = (*ONNXSegmenter)(nil)

// LoadONNXSegmenter always fails in builds without the onnx tag.
func LoadONNXSegmenter(cfg ONNXConfig) (*ONNXSegmenter, error) {
	_ = cfg
	return nil, fmt.Errorf("%w: onnx build tag is not enabled", entity.ErrModel)
}

// Segment always fails in builds without the onnx tag.
func (s *ONNXSegmenter) Segment(ctx context.Context, img image.Image) (*entity.LabelGrid, error) {
	_ = ctx
	_ = img
	return nil, fmt.Errorf("%w: onnx build tag is not enabled", entity.ErrModel)
}

// Close is a no-op.
func (s *ONNXSegmenter) Close() error { return nil }
