// Package container wires configuration into the application services.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ablemap/config"
	app "ablemap/internal/application"
	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
	"ablemap/internal/domain/scoring"
	"ablemap/internal/infrastructure/facility"
	"ablemap/internal/infrastructure/httputil"
	"ablemap/internal/infrastructure/llm"
	"ablemap/internal/infrastructure/location"
	"ablemap/internal/infrastructure/reportapi"
	"ablemap/internal/infrastructure/storage"
	"ablemap/internal/infrastructure/telemetry"
	"ablemap/internal/infrastructure/vision"
)

type Container struct {
	UserService       *app.UserService
	AssessmentService *app.AssessmentService

	closers   []io.Closer
	telemetry *telemetry.Provider
}

// Options adjust a build for one run.
type Options struct {
	OutputDir string // overrides OVERLAY_DIR and REPORTS_DIR when set
	SendToAPI bool
}

// New assembles the services from ready collaborators.
func New(userRepo port.UserRepository, deps app.AssessmentDeps, cfg app.AssessmentConfig) (*Container, error) {
	assessment, err := app.NewAssessmentService(deps, cfg)
	if err != nil {
		return nil, err
	}
	return &Container{
		UserService:       app.NewUserService(userRepo),
		AssessmentService: assessment,
	}, nil
}

// Build creates every collaborator described by cfg. Close releases them.
func Build(ctx context.Context, cfg *config.Config, logger port.Logger, opts Options) (*Container, error) {
	classes, palette, err := cfg.LoadClassMap()
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	fail := func(err error) (*Container, error) {
		closeAll(closers)
		return nil, err
	}

	segmenter, err := newSegmenter(cfg, classes, palette)
	if err != nil {
		return fail(err)
	}
	if c, ok := segmenter.(io.Closer); ok {
		closers = append(closers, c)
	}

	var engineOpts []scoring.Option
	if cfg.ScoringSeed != nil {
		engineOpts = append(engineOpts, scoring.WithSeed(*cfg.ScoringSeed))
	}
	engine, err := scoring.NewEngine(classes, cfg.ThresholdDistance, engineOpts...)
	if err != nil {
		return fail(err)
	}

	history, err := storage.OpenSQLite(cfg.DBPath, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, history)

	metrics, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.OTelEnabled,
		Endpoint: cfg.OTelEndpoint,
		Service:  "ablemap",
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("telemetry: %w", err))
	}

	validator := vision.NewQualityValidator()
	validator.Strict = cfg.QualityStrict
	validator.Logger = logger

	httpClient := httputil.NewClient(cfg.RequestTimeout)
	deps := app.AssessmentDeps{
		Validator: validator,
		Segmenter: segmenter,
		Engine:    engine,
		Overlay:   vision.NewOverlayRenderer(classes, palette),
		Locator:   location.NewExtractor(logger),
		Writer:    storage.FileReportWriter{},
		History:   history,
		Metrics:   metrics,
		Logger:    logger,
	}
	if cfg.FacilityAPIKey != "" {
		deps.Facilities = facility.NewClient(facility.Config{
			BaseURL:    cfg.FacilityEndpoint,
			ServiceKey: cfg.FacilityAPIKey,
			MaxRetries: cfg.MaxRetries,
		}, httpClient, logger)
	} else {
		logger.Printf("FACILITY_API_KEY not set, facility lookup disabled")
	}
	if cfg.LLMAPIKey != "" {
		deps.Narrator = llm.NewClient(llm.Config{
			BaseURL:    cfg.LLMEndpoint,
			APIKey:     cfg.LLMAPIKey,
			Model:      cfg.LLMModel,
			Language:   cfg.LLMLanguage,
			MaxRetries: cfg.MaxRetries,
		}, httpClient, logger)
	} else {
		logger.Printf("LLM_API_KEY not set, narrative analysis disabled")
	}
	if cfg.ReportAPIEndpoint != "" {
		deps.Sink = reportapi.NewClient(reportapi.Config{
			Endpoint:   cfg.ReportAPIEndpoint,
			APIKey:     cfg.ReportAPIKey,
			MaxRetries: cfg.MaxRetries,
		}, httpClient, logger)
	}

	assessCfg := app.AssessmentConfig{
		OverlayDir: cfg.OverlayDir,
		ReportsDir: cfg.ReportsDir,
		SendToAPI:  opts.SendToAPI,
		Workers:    cfg.Workers,
	}
	if opts.OutputDir != "" {
		assessCfg.OverlayDir = opts.OutputDir
		assessCfg.ReportsDir = opts.OutputDir
	}

	c, err := New(storage.NewMemoryUserRepository(), deps, assessCfg)
	if err != nil {
		metrics.Shutdown(ctx)
		return fail(err)
	}
	c.closers = closers
	c.telemetry = metrics
	return c, nil
}

func newSegmenter(cfg *config.Config, classes *entity.ClassMap, palette entity.Palette) (port.Segmenter, error) {
	switch cfg.Segmenter {
	case config.SegmenterPalette:
		return vision.NewPaletteSegmenter(classes, palette)
	case config.SegmenterONNX:
		return vision.LoadONNXSegmenter(vision.ONNXConfig{
			ModelPath:         cfg.ONNXModelPath,
			SharedLibraryPath: cfg.ONNXSharedLibrary,
			InputSize:         cfg.ONNXInputSize,
		})
	default:
		return nil, fmt.Errorf("unknown segmenter %q", cfg.Segmenter)
	}
}

// Close flushes telemetry and closes the segmenter and the history database.
func (c *Container) Close(ctx context.Context) error {
	c.telemetry.Shutdown(ctx)
	return closeAll(c.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i].Close())
	}
	return errors.Join(errs...)
}
