// Package config loads settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ablemap/internal/domain/entity"
)

// Mode selects which settings Validate requires.
type Mode int

const (
	ModeCLI Mode = iota
	ModeBot
)

// Segmenter kinds.
const (
	SegmenterONNX    = "onnx"
	SegmenterPalette = "palette"
)

const defaultFacilityEndpoint = "http://apis.data.go.kr/B554287/DisabledPersonConvenientFacility"

type Config struct {
	TelegramToken string

	Segmenter         string
	ONNXModelPath     string
	ONNXSharedLibrary string
	ONNXInputSize     int
	ClassMapPath      string

	ThresholdDistance float64
	ScoringSeed       *uint64

	FacilityEndpoint string
	FacilityAPIKey   string

	LLMEndpoint string
	LLMAPIKey   string
	LLMModel    string
	LLMLanguage string

	RequestTimeout time.Duration
	MaxRetries     int

	ReportAPIEndpoint string
	ReportAPIKey      string

	ImagesDir  string
	OverlayDir string
	ReportsDir string
	DBPath     string
	Workers    int
	LogFile    string

	OTelEnabled  bool
	OTelEndpoint string

	QualityStrict bool
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		Segmenter:         strings.ToLower(getString("SEGMENTER", SegmenterONNX)),
		ONNXModelPath:     getString("ONNX_MODEL_PATH", "models/segformer-b0-ade20k.onnx"),
		ONNXSharedLibrary: os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"),
		ClassMapPath:      os.Getenv("CLASS_MAP_PATH"),
		FacilityEndpoint:  getString("FACILITY_API_ENDPOINT", defaultFacilityEndpoint),
		FacilityAPIKey:    os.Getenv("FACILITY_API_KEY"),
		LLMEndpoint:       os.Getenv("LLM_API_ENDPOINT"),
		LLMAPIKey:         os.Getenv("LLM_API_KEY"),
		LLMModel:          os.Getenv("LLM_MODEL"),
		LLMLanguage:       getString("LLM_RESPONSE_LANGUAGE", "Korean"),
		ReportAPIEndpoint: os.Getenv("REPORT_API_ENDPOINT"),
		ReportAPIKey:      os.Getenv("REPORT_API_KEY"),
		ImagesDir:         getString("IMAGES_DIR", "data/images"),
		OverlayDir:        getString("OVERLAY_DIR", "data/results/overlays"),
		ReportsDir:        getString("REPORTS_DIR", "data/results/reports"),
		DBPath:            getString("DB_PATH", "data/ablemap.db"),
		LogFile:           os.Getenv("LOG_FILE"),
		OTelEndpoint:      getString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}

	var errs []error
	var err error
	if cfg.ONNXInputSize, err = getInt("ONNX_INPUT_SIZE", 512); err != nil {
		errs = append(errs, err)
	}
	if cfg.ThresholdDistance, err = getFloat("ACCESSIBILITY_THRESHOLD_DISTANCE", 50); err != nil {
		errs = append(errs, err)
	}
	if cfg.RequestTimeout, err = getDuration("API_REQUEST_TIMEOUT", 120*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxRetries, err = getInt("API_MAX_RETRIES", 3); err != nil {
		errs = append(errs, err)
	}
	if cfg.Workers, err = getInt("WORKERS", 2); err != nil {
		errs = append(errs, err)
	}
	if cfg.OTelEnabled, err = getBool("OTEL_ENABLED", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.QualityStrict, err = getBool("QUALITY_STRICT", false); err != nil {
		errs = append(errs, err)
	}
	if v := os.Getenv("SCORING_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SCORING_SEED: %w", err))
		} else {
			cfg.ScoringSeed = &seed
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing or out-of-range settings for mode.
func (c *Config) Validate(mode Mode) error {
	var errs []error
	if mode == ModeBot && c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_TOKEN is required"))
	}
	switch c.Segmenter {
	case SegmenterONNX:
		if c.ONNXModelPath == "" {
			errs = append(errs, errors.New("ONNX_MODEL_PATH is required for the onnx segmenter"))
		}
		if c.ONNXInputSize <= 0 {
			errs = append(errs, errors.New("ONNX_INPUT_SIZE must be positive"))
		}
	case SegmenterPalette:
	default:
		errs = append(errs, fmt.Errorf("SEGMENTER must be %q or %q, got %q", SegmenterONNX, SegmenterPalette, c.Segmenter))
	}
	if !(c.ThresholdDistance > 0) {
		errs = append(errs, errors.New("ACCESSIBILITY_THRESHOLD_DISTANCE must be positive"))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("WORKERS must be positive"))
	}
	if c.MaxRetries <= 0 {
		errs = append(errs, errors.New("API_MAX_RETRIES must be positive"))
	}
	return errors.Join(errs...)
}

// ClassFile is the layout of the CLASS_MAP_PATH file:
//
//	classes: {stairs: 53, door: 14}
//	colors:  {stairs: [255, 0, 0]}
type ClassFile struct {
	Classes map[string]int   `yaml:"classes"`
	Colors  map[string][]int `yaml:"colors"`
}

// LoadClassMap returns the class map and overlay palette. Without
// CLASS_MAP_PATH the ADE20K defaults are used. Colours missing from the
// file fall back to the default palette.
func (c *Config) LoadClassMap() (*entity.ClassMap, entity.Palette, error) {
	if c.ClassMapPath == "" {
		return entity.DefaultClassMap(), entity.DefaultPalette(), nil
	}
	data, err := os.ReadFile(c.ClassMapPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read class map: %w", err)
	}
	return ParseClassFile(data)
}

// ParseClassFile decodes a class map YAML document.
func ParseClassFile(data []byte) (*entity.ClassMap, entity.Palette, error) {
	var file ClassFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", entity.ErrInvalidClassMap, err)
	}
	classes, err := entity.NewClassMap(file.Classes)
	if err != nil {
		return nil, nil, err
	}

	palette := entity.DefaultPalette()
	for name, rgb := range file.Colors {
		if len(rgb) != 3 {
			return nil, nil, fmt.Errorf("%w: colour of %q needs 3 components", entity.ErrInvalidClassMap, name)
		}
		for _, v := range rgb {
			if v < 0 || v > 255 {
				return nil, nil, fmt.Errorf("%w: colour of %q out of range", entity.ErrInvalidClassMap, name)
			}
		}
		palette[name] = color.RGBA{R: uint8(rgb[0]), G: uint8(rgb[1]), B: uint8(rgb[2]), A: 255}
	}
	return classes, palette, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("90s") and plain seconds ("120").
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
