//go:build onnx

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
)

// ONNXSegmenter runs a SegFormer export with onnxruntime. The session and
// its tensors are allocated once and reused under a mutex.
type ONNXSegmenter struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	cfg     ONNXConfig
	outSide int

	mu sync.Mutex
}

var _ port.Segmenter = (*ONNXSegmenter)(nil)

// LoadONNXSegmenter initialises onnxruntime and opens the model. SegFormer
// logits come out at a quarter of the input resolution.
func LoadONNXSegmenter(cfg ONNXConfig) (*ONNXSegmenter, error) {
	cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: model path is empty", entity.ErrModel)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file missing at %s: %v", entity.ErrModel, cfg.ModelPath, err)
	}

	libPath := resolveSharedLibraryPath(cfg.SharedLibraryPath, filepath.Dir(cfg.ModelPath))
	if libPath == "" {
		return nil, fmt.Errorf("%w: onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH", entity.ErrModel)
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: initialize onnxruntime: %v", entity.ErrModel, err)
		}
	}

	outSide := cfg.InputSize / 4
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(cfg.InputSize), int64(cfg.InputSize)))
	if err != nil {
		return nil, fmt.Errorf("%w: allocate input tensor: %v", entity.ErrModel, err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.NumLabels), int64(outSide), int64(outSide)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("%w: allocate output tensor: %v", entity.ErrModel, err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("%w: create onnx session: %v", entity.ErrModel, err)
	}

	return &ONNXSegmenter{session: session, input: input, output: output, cfg: cfg, outSide: outSide}, nil
}

// Segment returns the label grid at logits resolution.
func (s *ONNXSegmenter) Segment(ctx context.Context, img image.Image) (*entity.LabelGrid, error) {
	if s == nil || s.session == nil {
		return nil, fmt.Errorf("%w: segmenter not initialized", entity.ErrModel)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", entity.ErrInvalidInput)
	}
	pixels := PixelValues(img, s.cfg.InputSize)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.input.GetData(), pixels)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: onnx run: %v", entity.ErrModel, err)
	}
	return ArgmaxGrid(s.output.GetData(), s.cfg.NumLabels, s.outSide, s.outSide)
}

// Close releases the session and tensors.
func (s *ONNXSegmenter) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.session != nil {
		errs = append(errs, s.session.Destroy())
		s.session = nil
	}
	if s.input != nil {
		errs = append(errs, s.input.Destroy())
		s.input = nil
	}
	if s.output != nil {
		errs = append(errs, s.output.Destroy())
		s.output = nil
	}
	return errors.Join(errs...)
}
