package llm

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Thumbnail scales img down to fit within maxSide x maxSide, keeping the
// aspect ratio. Smaller images are returned unchanged.
func Thumbnail(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	long := max(w, h)
	nw, nh := max(1, w*maxSide/long), max(1, h*maxSide/long)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// encodeImage returns a base64 JPEG of the thumbnail and its media type.
func encodeImage(img image.Image, maxSide int) (string, string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Thumbnail(img, maxSide), &jpeg.Options{Quality: 90}); err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), "image/jpeg", nil
}
