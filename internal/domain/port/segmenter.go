package port

import (
	"context"
	"image"

	"ablemap/internal/domain/entity"
)

// Segmenter assigns a class ID to every pixel of an image.
type Segmenter interface {
	// Segment returns a label grid, possibly coarser than the image. Model
	// failures wrap entity.ErrModel.
	Segment(ctx context.Context, img image.Image) (*entity.LabelGrid, error)
}

// ImageValidator decodes a photo and rejects unusable ones.
type ImageValidator interface {
	// Validate returns the decoded image or an error wrapping
	// entity.ErrImageInvalid.
	Validate(ctx context.Context, data []byte) (image.Image, error)
}

// LocationExtractor derives a location descriptor from a photo.
type LocationExtractor interface {
	Extract(name string, data []byte) *entity.LocationDescriptor
}

// OverlayRenderer paints a label grid over the photo it was computed from
// and encodes the result for storage and delivery.
type OverlayRenderer interface {
	Render(img image.Image, grid *entity.LabelGrid) image.Image
	Encode(img image.Image) ([]byte, error)
}
