package vision

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"ablemap/internal/domain/entity"
)

// ImageNet statistics used by SegFormer preprocessing.
var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// ADE20KLabels is the number of classes of ADE20K SegFormer checkpoints.
const ADE20KLabels = 150

// ONNXConfig configures the SegFormer ONNX segmenter.
type ONNXConfig struct {
	ModelPath         string
	SharedLibraryPath string
	InputSize         int // square model input side, 512 by default
	NumLabels         int // logits channels, ADE20KLabels by default
	InputName         string
	OutputName        string
}

func (c *ONNXConfig) withDefaults() {
	if c.InputSize <= 0 {
		c.InputSize = 512
	}
	if c.NumLabels <= 0 {
		c.NumLabels = ADE20KLabels
	}
	if c.InputName == "" {
		c.InputName = "pixel_values"
	}
	if c.OutputName == "" {
		c.OutputName = "logits"
	}
}

// PixelValues resizes img to size x size and returns it as a normalized
// CHW float tensor.
func PixelValues(img image.Image, size int) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := dst.PixOffset(x, y)
			p := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(dst.Pix[i+c]) / 255
				out[c*plane+p] = (v - imageNetMean[c]) / imageNetStd[c]
			}
		}
	}
	return out
}

// ArgmaxGrid picks the highest-scoring label per cell of a
// [labels][rows][cols] logits tensor.
func ArgmaxGrid(logits []float32, labels, rows, cols int) (*entity.LabelGrid, error) {
	plane := rows * cols
	if labels <= 0 || plane <= 0 || len(logits) != labels*plane {
		return nil, fmt.Errorf("%w: logits size %d for %dx%dx%d", entity.ErrModel, len(logits), labels, rows, cols)
	}
	data := make([]int, plane)
	for p := 0; p < plane; p++ {
		best, bestScore := 0, logits[p]
		for l := 1; l < labels; l++ {
			if s := logits[l*plane+p]; s > bestScore {
				best, bestScore = l, s
			}
		}
		data[p] = best
	}
	return entity.NewLabelGrid(rows, cols, data)
}

// resolveSharedLibraryPath returns configured, then env, then well-known
// locations of the onnxruntime library.
func resolveSharedLibraryPath(configured, modelDir string) string {
	if configured != "" {
		return configured
	}
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}
	names := []string{"libonnxruntime.so", "libonnxruntime.dylib", "onnxruntime.dll"}
	dirs := []string{modelDir, filepath.Join(modelDir, "lib"), ".", "/opt/homebrew/lib", "/usr/local/lib", "/usr/lib"}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
