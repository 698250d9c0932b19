// Package reportapi pushes finished assessments to an external collection
// service.
package reportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
	"ablemap/internal/infrastructure/httputil"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 2 * time.Second
	defaultRateWait   = 5 * time.Second
	pingTimeout       = 5 * time.Second
	maxResponseBytes  = 1 << 20
)

// Config configures a Client.
type Config struct {
	Endpoint   string
	APIKey     string
	MaxRetries int
	Backoff    time.Duration
	RateWait   time.Duration // wait after 429 without Retry-After
}

// StatusError is returned for client errors that are not retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("report api: http %d: %s", e.StatusCode, e.Body)
}

var (
	// ErrRetriesExhausted is returned when every attempt failed.
	ErrRetriesExhausted = errors.New("report api: retries exhausted")

	errRateLimited = errors.New("rate limited")
	errPermanent   = errors.New("report api: request not retryable")
)

// Client sends reports with bearer authentication.
type Client struct {
	cfg  Config
	http httputil.HTTPClient
	log  port.Logger
	now  func() time.Time
}

var _ port.ReportSink = (*Client)(nil)

// NewClient creates a client. Zero values in cfg take defaults.
func NewClient(cfg Config, httpClient httputil.HTTPClient, logger port.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.RateWait <= 0 {
		cfg.RateWait = defaultRateWait
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{cfg: cfg, http: httpClient, log: logger, now: time.Now}
}

type payload struct {
	Location      *entity.LocationDescriptor  `json:"location"`
	Accessibility *entity.AccessibilityResult `json:"accessibility"`
	Timestamp     time.Time                   `json:"timestamp"`
	Facility      *entity.FacilityInfo        `json:"facility,omitempty"`
	Analysis      *entity.NarrativeReport     `json:"ai_analysis,omitempty"`
	ImagePath     string                      `json:"image_path,omitempty"`
	OverlayPath   string                      `json:"overlay_path,omitempty"`
}

// Send posts the report and returns the decoded reply. A successful reply
// without a JSON body yields {"status": "success"}.
func (c *Client) Send(ctx context.Context, report *entity.Report) (map[string]any, error) {
	body, err := json.Marshal(payload{
		Location:      report.Location,
		Accessibility: report.Accessibility,
		Timestamp:     c.now(),
		Facility:      report.Facility,
		Analysis:      report.Narrative,
		ImagePath:     report.ImagePath,
		OverlayPath:   report.OverlayPath,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		out, wait, err := c.post(ctx, c.cfg.Endpoint, body)
		if err == nil {
			return out, nil
		}
		var se *StatusError
		if errors.As(err, &se) || errors.Is(err, errPermanent) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		if attempt == c.cfg.MaxRetries-1 {
			break
		}
		if wait == 0 {
			wait = httputil.Backoff(c.cfg.Backoff, attempt)
		}
		c.log.Printf("report api: attempt %d/%d failed (%v), retrying in %s", attempt+1, c.cfg.MaxRetries, err, wait)
		if err := httputil.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

// post makes one attempt. Retryable failures may carry a server-requested wait.
func (c *Client) post(ctx context.Context, url string, body []byte) (map[string]any, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	data, err := httputil.ReadLimited(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, 0, err
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		out := map[string]any{}
		if err := json.Unmarshal(data, &out); err != nil {
			return map[string]any{"status": "success", "message": "sent, no JSON in reply"}, 0, nil
		}
		return out, 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, httputil.RetryAfter(resp.Header, c.cfg.RateWait), errRateLimited
	case resp.StatusCode >= 500:
		return nil, 0, fmt.Errorf("server error %d", resp.StatusCode)
	default:
		return nil, 0, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
}

// Ping checks that the service answers 200 on {endpoint}/ping.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{"test": true, "timestamp": c.now()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/ping", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	_, _ = httputil.ReadLimited(resp.Body, maxResponseBytes)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: http %d", resp.StatusCode)
	}
	return nil
}
