package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/scoring"
	"ablemap/internal/infrastructure/location"
	"ablemap/internal/infrastructure/logging"
	"ablemap/internal/infrastructure/storage"
	"ablemap/internal/infrastructure/telemetry"
	"ablemap/internal/infrastructure/vision"
)

// decodeValidator skips the quality thresholds so tests can use tiny masks.
type decodeValidator struct{}

func (decodeValidator) Validate(_ context.Context, data []byte) (image.Image, error) {
	return vision.Decode(data)
}

type fakeFacilities struct {
	mu   sync.Mutex
	seen []*entity.LocationDescriptor
}

func (f *fakeFacilities) Lookup(_ context.Context, loc *entity.LocationDescriptor) (*entity.FacilityInfo, error) {
	f.mu.Lock()
	f.seen = append(f.seen, loc)
	f.mu.Unlock()
	if loc.IsZero() {
		return entity.UnavailableFacility("no location information"), nil
	}
	return &entity.FacilityInfo{Available: true, Basic: entity.FacilityRecord{entity.FieldName: "City Hall"}}, nil
}

type fakeNarrator struct {
	final  float64
	err    error
	images atomic.Int32
}

func (n *fakeNarrator) BuildPrompt(result *entity.AccessibilityResult, _ *entity.FacilityInfo) string {
	return fmt.Sprintf("score %d", result.Score)
}

func (n *fakeNarrator) RequestAnalysis(_ context.Context, images []image.Image, _ string) (*entity.NarrativeReport, error) {
	n.images.Store(int32(len(images)))
	if n.err != nil {
		return nil, n.err
	}
	s := entity.FlexScore(n.final)
	return &entity.NarrativeReport{FinalScore: &s, Recommendations: []string{"add a ramp"}}, nil
}

type fakeSink struct {
	sent []*entity.Report
}

func (s *fakeSink) Send(_ context.Context, r *entity.Report) (map[string]any, error) {
	s.sent = append(s.sent, r)
	return map[string]any{"status": "success"}, nil
}

func (s *fakeSink) Ping(context.Context) error { return nil }

// entrancePNG paints a door with stairs right below it on a grey photo.
func entrancePNG(t *testing.T) []byte {
	t.Helper()
	palette := entity.DefaultPalette()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{R: 128, G: 128, B: 128, A: 255}
			switch {
			case y < 10 && x < 10:
				c = palette[entity.ClassDoor]
			case y < 15 && x < 10:
				c = palette[entity.ClassStairs]
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	svc        *AssessmentService
	dir        string
	facilities *fakeFacilities
	narrator   *fakeNarrator
	sink       *fakeSink
	history    *storage.SQLiteReportRepository
	logs       *bytes.Buffer
}

func newFixture(t *testing.T, sendToAPI bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	classes := entity.DefaultClassMap()

	seg, err := vision.NewPaletteSegmenter(classes, entity.DefaultPalette())
	require.NoError(t, err)
	engine, err := scoring.NewEngine(classes, 5, scoring.WithSeed(1))
	require.NoError(t, err)
	history, err := storage.OpenSQLite(filepath.Join(dir, "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	var logs bytes.Buffer
	logger := logging.New(&logs, "")
	metrics, err := telemetry.NewProvider(context.Background(), telemetry.Config{}, logger)
	require.NoError(t, err)

	f := &fixture{
		dir:        dir,
		facilities: &fakeFacilities{},
		narrator:   &fakeNarrator{final: 7},
		sink:       &fakeSink{},
		history:    history,
		logs:       &logs,
	}
	f.svc, err = NewAssessmentService(AssessmentDeps{
		Validator:  decodeValidator{},
		Segmenter:  seg,
		Engine:     engine,
		Overlay:    vision.NewOverlayRenderer(classes, entity.DefaultPalette()),
		Locator:    location.NewExtractor(logger),
		Facilities: f.facilities,
		Narrator:   f.narrator,
		Writer:     storage.FileReportWriter{},
		History:    history,
		Sink:       f.sink,
		Metrics:    metrics,
		Logger:     logger,
	}, AssessmentConfig{
		OverlayDir: filepath.Join(dir, "overlays"),
		ReportsDir: filepath.Join(dir, "reports"),
		SendToAPI:  sendToAPI,
		Workers:    2,
	})
	require.NoError(t, err)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return f
}

func TestNewAssessmentService_RequiresCollaborators(t *testing.T) {
	_, err := NewAssessmentService(AssessmentDeps{}, AssessmentConfig{})
	require.Error(t, err)
}

func TestProcessImage(t *testing.T) {
	f := newFixture(t, true)
	path := filepath.Join(f.dir, "서울특별시_중구_세종대로_110.png")
	require.NoError(t, os.WriteFile(path, entrancePNG(t), 0o644))

	rep, err := f.svc.ProcessImage(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, 6, rep.Accessibility.Score)
	require.True(t, rep.Accessibility.HasObstacle(entity.ObstacleStairsAtEntrance))
	require.Equal(t, scoring.Explain(6), rep.Explanation)
	require.InDelta(t, 7.0, rep.FinalScore(), 1e-9)
	require.True(t, rep.Facility.Available)
	require.EqualValues(t, 2, f.narrator.images.Load())
	require.Equal(t, map[string]any{"status": "success"}, rep.APIResponse)
	require.Len(t, f.sink.sent, 1)

	require.Len(t, f.facilities.seen, 1)
	require.Equal(t, "서울특별시", f.facilities.seen[0].SiDoNm)
	require.Equal(t, "중구", f.facilities.seen[0].CggNm)

	overlay := filepath.Join(f.dir, "overlays", "서울특별시_중구_세종대로_110_overlay_20260301_093000.png")
	require.Equal(t, overlay, rep.OverlayPath)
	require.FileExists(t, overlay)
	require.FileExists(t, filepath.Join(f.dir, "reports", "서울특별시_중구_세종대로_110_report_20260301_093000.json"))

	stored, err := f.history.Get(context.Background(), rep.ID)
	require.NoError(t, err)
	require.Equal(t, path, stored.ImagePath)
	require.Equal(t, map[string]any{"status": "success"}, stored.APIResponse)

	require.Contains(t, f.logs.String(), "segment took")
}

func TestProcessImage_InvalidImageWritesErrorReport(t *testing.T) {
	f := newFixture(t, false)
	path := filepath.Join(f.dir, "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := f.svc.ProcessImage(context.Background(), path)
	require.ErrorIs(t, err, entity.ErrImageInvalid)

	errPath := filepath.Join(f.dir, "reports", "broken_error_20260301_093000.json")
	data, err := os.ReadFile(errPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "processing error")

	recent, err := f.svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, recent)
}

type failingWriter struct {
	storage.FileReportWriter
}

func (failingWriter) WriteReport(string, *entity.Report) error {
	return errors.New("disk full")
}

func TestProcessImage_WriteFailureWritesErrorReport(t *testing.T) {
	f := newFixture(t, false)
	f.svc.deps.Writer = failingWriter{}
	path := filepath.Join(f.dir, "entrance.png")
	require.NoError(t, os.WriteFile(path, entrancePNG(t), 0o644))

	_, err := f.svc.ProcessImage(context.Background(), path)
	require.ErrorContains(t, err, "disk full")

	data, err := os.ReadFile(filepath.Join(f.dir, "reports", "entrance_error_20260301_093000.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "write report: disk full")

	recent, err := f.svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, recent)
}

func TestAssessPhoto_NarrativeFailureIsRecorded(t *testing.T) {
	f := newFixture(t, false)
	f.narrator.err = fmt.Errorf("%w: retries exhausted", entity.ErrLLM)

	lat, lon := 37.5665, 126.978
	out, err := f.svc.AssessPhoto(context.Background(), entrancePNG(t), &entity.LocationDescriptor{Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)

	require.NotEmpty(t, out.Overlay)
	_, err = png.Decode(bytes.NewReader(out.Overlay))
	require.NoError(t, err)

	require.NotNil(t, out.Report.Narrative)
	require.Contains(t, out.Report.Narrative.Error, "retries exhausted")
	require.InDelta(t, 6.0, out.Report.FinalScore(), 1e-9)
	require.True(t, f.facilities.seen[0].HasCoordinates())
	require.Empty(t, f.sink.sent)
	require.Nil(t, out.Report.APIResponse)
}

func TestAssessPhoto_CancelledContext(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.AssessPhoto(ctx, entrancePNG(t), nil)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestProcessDirectory(t *testing.T) {
	f := newFixture(t, false)
	images := filepath.Join(f.dir, "images")
	require.NoError(t, os.MkdirAll(filepath.Join(images, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(images, "a.png"), entrancePNG(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(images, "nested", "b.PNG"), entrancePNG(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(images, "c.jpg"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(images, "notes.txt"), []byte("skip"), 0o644))

	res, err := f.svc.ProcessDirectory(context.Background(), images)
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 3)
	require.Equal(t, filepath.Join(images, "a.png"), res.Outcomes[0].Path)
	require.Error(t, res.Outcomes[1].Err)
	require.Equal(t, BatchSummary{Total: 3, Succeeded: 2, Failed: 1, MeanScore: 7}, res.Summary)

	recent, err := f.svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestSummarize(t *testing.T) {
	report := func(score int) *entity.Report {
		return &entity.Report{Accessibility: &entity.AccessibilityResult{Score: score}}
	}
	sum := Summarize([]ImageOutcome{
		{Report: report(4)},
		{Report: report(8)},
		{Err: errors.New("boom")},
	})
	require.Equal(t, 3, sum.Total)
	require.Equal(t, 2, sum.Succeeded)
	require.Equal(t, 1, sum.Failed)
	require.InDelta(t, 6.0, sum.MeanScore, 1e-9)
	require.InDelta(t, 2.8284271, sum.StdDevScore, 1e-6)

	require.Equal(t, BatchSummary{}, Summarize(nil))
}
