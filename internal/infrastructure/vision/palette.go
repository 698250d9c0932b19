package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// Background is the label of mask pixels whose colour maps to no class.
const Background = -1

// PaletteSegmenter reads colour-coded masks: every pixel whose colour is in
// the palette gets that class, everything else is Background. It serves
// pre-segmented images and tests.
type PaletteSegmenter struct {
	colors map[color.RGBA]int
}

var _ port.Segmenter = (*PaletteSegmenter)(nil)

// NewPaletteSegmenter maps palette colours to class IDs. Palette entries
// naming classes absent from classes are ignored.
func NewPaletteSegmenter(classes *entity.ClassMap, palette entity.Palette) (*PaletteSegmenter, error) {
	colors := make(map[color.RGBA]int, len(palette))
	for name, c := range palette {
		id, ok := classes.ID(name)
		if !ok {
			continue
		}
		c.A = 255
		if other, dup := colors[c]; dup && other != id {
			return nil, fmt.Errorf("%w: colour %v used by two classes", entity.ErrInvalidClassMap, c)
		}
		colors[c] = id
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("%w: palette matches no class", entity.ErrInvalidClassMap)
	}
	return &PaletteSegmenter{colors: colors}, nil
}

// Segment labels every pixel of img.
func (s *PaletteSegmenter) Segment(ctx context.Context, img image.Image) (*entity.LabelGrid, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", entity.ErrInvalidInput)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", entity.ErrInvalidInput)
	}
	data := make([]int, w*h)
	for y := 0; y < h; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < w; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			c.A = 255
			id, ok := s.colors[c]
			if !ok {
				id = Background
			}
			data[y*w+x] = id
		}
	}
	return entity.NewLabelGrid(h, w, data)
}
