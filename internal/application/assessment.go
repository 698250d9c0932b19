package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
	"ablemap/internal/domain/scoring"
)

const timestampLayout = "20060102_150405"

// Messages stored in FacilityInfo when no lookup ran.
const msgLookupDisabled = "facility lookup not configured"

// AssessmentDeps are the collaborators of AssessmentService. Validator,
// Segmenter, Engine and Overlay are required; the rest are optional.
type AssessmentDeps struct {
	Validator  port.ImageValidator
	Segmenter  port.Segmenter
	Engine     *scoring.Engine
	Overlay    port.OverlayRenderer
	Locator    port.LocationExtractor
	Facilities port.FacilityLookup
	Narrator   port.NarrativeAnalyzer
	Writer     port.ReportWriter
	History    port.ReportRepository
	Sink       port.ReportSink
	Metrics    port.Instrumentation
	Logger     port.Logger
}

// AssessmentConfig controls where results go.
type AssessmentConfig struct {
	OverlayDir string
	ReportsDir string
	SendToAPI  bool
	Workers    int
}

// AssessmentService runs the assessment pipeline for one photo: quality
// gate, segmentation, scoring, facility lookup, narrative and persistence.
type AssessmentService struct {
	deps AssessmentDeps
	cfg  AssessmentConfig
	now  func() time.Time
}

// AssessmentOutput is the result of assessing an in-memory photo.
type AssessmentOutput struct {
	Report  *entity.Report
	Overlay []byte // PNG
}

// NewAssessmentService checks the required collaborators.
func NewAssessmentService(deps AssessmentDeps, cfg AssessmentConfig) (*AssessmentService, error) {
	switch {
	case deps.Validator == nil:
		return nil, errors.New("image validator is not configured")
	case deps.Segmenter == nil:
		return nil, errors.New("segmenter is not configured")
	case deps.Engine == nil:
		return nil, errors.New("scoring engine is not configured")
	case deps.Overlay == nil:
		return nil, errors.New("overlay renderer is not configured")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &AssessmentService{deps: deps, cfg: cfg, now: time.Now}, nil
}

// ProcessImage assesses the photo at path. The overlay PNG and the JSON
// report are written next to each other in the configured directories; on
// failure an error report is written instead and the error returned.
func (s *AssessmentService) ProcessImage(ctx context.Context, path string) (*entity.Report, error) {
	ts := s.now()
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	overlayPath := filepath.Join(s.cfg.OverlayDir, fmt.Sprintf("%s_overlay_%s.png", stem, ts.Format(timestampLayout)))
	reportPath := filepath.Join(s.cfg.ReportsDir, fmt.Sprintf("%s_report_%s.json", stem, ts.Format(timestampLayout)))

	report, err := s.processFile(ctx, path, overlayPath)
	if err != nil {
		s.writeError(path, stem, err)
		return nil, err
	}

	s.send(ctx, report)
	if s.deps.Writer != nil {
		if err := s.deps.Writer.WriteReport(reportPath, report); err != nil {
			err = fmt.Errorf("write report: %w", err)
			s.writeError(path, stem, err)
			return nil, err
		}
	}
	s.save(ctx, report)
	s.logf("processing complete, report saved to %s", reportPath)
	return report, nil
}

func (s *AssessmentService) processFile(ctx context.Context, path, overlayPath string) (*entity.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	var loc *entity.LocationDescriptor
	if s.deps.Locator != nil {
		loc = s.deps.Locator.Extract(path, data)
	}

	out, err := s.assess(ctx, data, loc, path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(overlayPath), 0o755); err != nil {
		return nil, fmt.Errorf("create overlay dir: %w", err)
	}
	if err := os.WriteFile(overlayPath, out.Overlay, 0o644); err != nil {
		return nil, fmt.Errorf("write overlay: %w", err)
	}
	out.Report.ImagePath = path
	out.Report.OverlayPath = overlayPath
	return out.Report, nil
}

// AssessPhoto runs the pipeline on an in-memory photo. When loc is nil the
// location is taken from the photo's EXIF data, if any.
func (s *AssessmentService) AssessPhoto(ctx context.Context, data []byte, loc *entity.LocationDescriptor) (*AssessmentOutput, error) {
	if loc == nil && s.deps.Locator != nil {
		loc = s.deps.Locator.Extract("", data)
	}
	out, err := s.assess(ctx, data, loc, "photo")
	if err != nil {
		return nil, err
	}
	s.send(ctx, out.Report)
	s.save(ctx, out.Report)
	return out, nil
}

func (s *AssessmentService) assess(ctx context.Context, data []byte, loc *entity.LocationDescriptor, name string) (*AssessmentOutput, error) {
	s.logf("processing image: %s", name)

	img, err := measure(s, ctx, "validate", func(ctx context.Context) (image.Image, error) {
		return s.deps.Validator.Validate(ctx, data)
	})
	if err != nil {
		return nil, err
	}

	grid, err := measure(s, ctx, "segment", func(ctx context.Context) (*entity.LabelGrid, error) {
		return s.deps.Segmenter.Segment(ctx, img)
	})
	if err != nil {
		return nil, err
	}

	overlayImg := s.deps.Overlay.Render(img, grid)
	overlayPNG, err := s.deps.Overlay.Encode(overlayImg)
	if err != nil {
		return nil, fmt.Errorf("encode overlay: %w", err)
	}

	result, err := measure(s, ctx, "analyze", func(context.Context) (*entity.AccessibilityResult, error) {
		return s.deps.Engine.Analyze(grid)
	})
	if err != nil {
		return nil, err
	}

	facility, err := measure(s, ctx, "facility", func(ctx context.Context) (*entity.FacilityInfo, error) {
		if s.deps.Facilities == nil {
			return entity.UnavailableFacility(msgLookupDisabled), nil
		}
		return s.deps.Facilities.Lookup(ctx, loc)
	})
	if err != nil {
		return nil, err
	}

	narrative, err := s.narrate(ctx, []image.Image{img, overlayImg}, result, facility)
	if err != nil {
		return nil, err
	}

	report := &entity.Report{
		ID:            uuid.NewString(),
		Location:      loc,
		Accessibility: result,
		Explanation:   scoring.Explain(result.Score),
		Facility:      facility,
		Narrative:     narrative,
		Timestamp:     s.now(),
	}
	return &AssessmentOutput{Report: report, Overlay: overlayPNG}, nil
}

// narrate returns a NarrativeReport carrying the error text when the model
// call fails; only context errors abort the pipeline.
func (s *AssessmentService) narrate(ctx context.Context, images []image.Image, result *entity.AccessibilityResult, facility *entity.FacilityInfo) (*entity.NarrativeReport, error) {
	if s.deps.Narrator == nil {
		return nil, nil
	}
	prompt := s.deps.Narrator.BuildPrompt(result, facility)
	rep, err := measure(s, ctx, "narrative", func(ctx context.Context) (*entity.NarrativeReport, error) {
		return s.deps.Narrator.RequestAnalysis(ctx, images, prompt)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logf("narrative analysis failed: %v", err)
		return &entity.NarrativeReport{Error: err.Error()}, nil
	}
	return rep, nil
}

// send pushes report to the report API and attaches the response. It runs
// before the report is written or stored so both carry api_response.
// Failures are logged and do not fail the assessment.
func (s *AssessmentService) send(ctx context.Context, report *entity.Report) {
	if !s.cfg.SendToAPI || s.deps.Sink == nil {
		return
	}
	resp, err := measure(s, ctx, "report_api", func(ctx context.Context) (map[string]any, error) {
		return s.deps.Sink.Send(ctx, report)
	})
	if err != nil {
		s.logf("send report: %v", err)
		resp = map[string]any{"error": err.Error()}
	}
	report.APIResponse = resp
}

// save stores report in the history. Failures are logged only.
func (s *AssessmentService) save(ctx context.Context, report *entity.Report) {
	if s.deps.History == nil {
		return
	}
	_, err := measure(s, ctx, "history", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deps.History.Save(ctx, report)
	})
	if err != nil {
		s.logf("save history: %v", err)
	}
}

func (s *AssessmentService) writeError(path, stem string, cause error) {
	s.logf("error during processing %s: %v", path, cause)
	if s.deps.Writer == nil {
		return
	}
	ts := s.now()
	errPath := filepath.Join(s.cfg.ReportsDir, fmt.Sprintf("%s_error_%s.json", stem, ts.Format(timestampLayout)))
	rep := &entity.ErrorReport{
		Error:     fmt.Sprintf("processing error: %v", cause),
		ImagePath: path,
		Timestamp: ts,
	}
	if err := s.deps.Writer.WriteError(errPath, rep); err != nil {
		s.logf("write error report: %v", err)
	}
}

// Recent returns the latest stored reports.
func (s *AssessmentService) Recent(ctx context.Context, n int) ([]*entity.Report, error) {
	if s.deps.History == nil {
		return nil, errors.New("report history is not configured")
	}
	return s.deps.History.Recent(ctx, n)
}

// PingReportAPI checks the report API connection.
func (s *AssessmentService) PingReportAPI(ctx context.Context) error {
	if s.deps.Sink == nil {
		return errors.New("report API is not configured")
	}
	return s.deps.Sink.Ping(ctx)
}

func (s *AssessmentService) logf(format string, args ...any) {
	if s.deps.Logger != nil {
		s.deps.Logger.Printf(format, args...)
	}
}

// measure runs fn as a named stage of the instrumentation, if configured.
func measure[T any](s *AssessmentService, ctx context.Context, stage string, fn func(context.Context) (T, error)) (T, error) {
	if s.deps.Metrics == nil {
		return fn(ctx)
	}
	ctx, done := s.deps.Metrics.Measure(ctx, stage)
	v, err := fn(ctx)
	done(err)
	return v, err
}
