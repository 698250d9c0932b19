package app

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"ablemap/internal/domain/entity"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif"}

// ImageOutcome is the result for one image of a batch.
type ImageOutcome struct {
	Path   string
	Report *entity.Report
	Err    error
}

// BatchSummary aggregates the scores of a batch.
type BatchSummary struct {
	Total       int
	Succeeded   int
	Failed      int
	MeanScore   float64
	StdDevScore float64
}

// BatchResult holds per-image outcomes in discovery order.
type BatchResult struct {
	Outcomes []ImageOutcome
	Summary  BatchSummary
}

// FindImages lists supported images under dir recursively, sorted by path.
func FindImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path))) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// ProcessDirectory assesses every image under dir with up to
// cfg.Workers images in flight. A failing image does not stop the batch.
func (s *AssessmentService) ProcessDirectory(ctx context.Context, dir string) (*BatchResult, error) {
	paths, err := FindImages(dir)
	if err != nil {
		return nil, err
	}
	s.logf("found %d images in %s", len(paths), dir)

	outcomes := make([]ImageOutcome, len(paths))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = ImageOutcome{Path: path, Err: err}
				return err
			}
			rep, err := s.ProcessImage(ctx, path)
			outcomes[i] = ImageOutcome{Path: path, Report: rep, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BatchResult{Outcomes: outcomes, Summary: Summarize(outcomes)}
	s.logf("batch done: %d succeeded, %d failed", res.Summary.Succeeded, res.Summary.Failed)
	return res, nil
}

// Summarize counts outcomes and computes score statistics over the
// successful ones.
func Summarize(outcomes []ImageOutcome) BatchSummary {
	sum := BatchSummary{Total: len(outcomes)}
	var scores []float64
	for _, o := range outcomes {
		if o.Err != nil || o.Report == nil {
			sum.Failed++
			continue
		}
		sum.Succeeded++
		scores = append(scores, o.Report.FinalScore())
	}
	switch len(scores) {
	case 0:
	case 1:
		sum.MeanScore = scores[0]
	default:
		sum.MeanScore, sum.StdDevScore = stat.MeanStdDev(scores, nil)
	}
	return sum
}
