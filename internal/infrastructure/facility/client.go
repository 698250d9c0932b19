// Package facility queries the public registry of disabled-person
// convenience facilities and turns its records into FacilityInfo.
package facility

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
	"ablemap/internal/infrastructure/httputil"
)

const (
	defaultRows       = 100
	defaultPages      = 3
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	maxBodyBytes      = 8 << 20
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	ServiceKey string
	MaxRetries int
	Backoff    time.Duration
	Rows       int // records per list page
	Pages      int // list pages scanned per lookup
}

// Client talks to the facility service.
type Client struct {
	cfg  Config
	http httputil.HTTPClient
	log  port.Logger
}

// NewClient creates a client. Zero values in cfg take defaults.
func NewClient(cfg Config, httpClient httputil.HTTPClient, logger port.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Rows <= 0 {
		cfg.Rows = defaultRows
	}
	if cfg.Pages <= 0 {
		cfg.Pages = defaultPages
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, log: logger}
}

// ListFacilities returns one page of operating facilities, optionally
// filtered by region. Records without a facility ID are dropped.
func (c *Client) ListFacilities(ctx context.Context, page, rows int, region *entity.LocationDescriptor) ([]entity.FacilityRecord, error) {
	params := url.Values{}
	params.Set("serviceKey", c.cfg.ServiceKey)
	params.Set("pageNo", strconv.Itoa(page))
	params.Set("numOfRows", strconv.Itoa(rows))
	params.Set("type", "xml")
	params.Set("salStaDivCd", "Y")
	if region != nil && region.SiDoNm != "" {
		params.Set("siDoNm", region.SiDoNm)
		if region.CggNm != "" {
			params.Set("cggNm", region.CggNm)
		}
		if region.RoadNm != "" {
			params.Set("roadNm", region.RoadNm)
		}
	}

	res, err := c.fetch(ctx, "/get", params)
	if err != nil {
		return nil, err
	}
	if res.ErrMsg == serviceErrorMsg {
		c.log.Printf("facility: service error on page %d", page)
		return nil, nil
	}
	c.log.Printf("facility: page %d, total count %d", page, res.TotalCount)

	out := make([]entity.FacilityRecord, 0, len(res.Records))
	for _, r := range res.Records {
		if r.ID() == "" {
			c.log.Printf("facility: dropping record without %s: %s", entity.FieldFacilityID, r.Name())
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Detail returns the detail record of a facility, or nil when the service
// has none.
func (c *Client) Detail(ctx context.Context, id string) (entity.FacilityRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty facility id", entity.ErrInvalidInput)
	}
	params := url.Values{}
	params.Set("serviceKey", c.cfg.ServiceKey)
	params.Set(entity.FieldFacilityID, id)
	params.Set("type", "xml")

	res, err := c.fetch(ctx, "/getList", params)
	if err != nil {
		return nil, err
	}
	if res.ErrMsg == serviceErrorMsg || len(res.Records) == 0 {
		return nil, nil
	}
	return res.Records[0], nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values) (*listing, error) {
	endpoint := c.cfg.BaseURL + path + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := httputil.Sleep(ctx, httputil.Backoff(c.cfg.Backoff, attempt-1)); err != nil {
				return nil, err
			}
		}
		body, err := c.get(ctx, endpoint)
		if err != nil {
			lastErr = err
			c.log.Printf("facility: request %s attempt %d/%d failed: %v", path, attempt+1, c.cfg.MaxRetries, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return decodeListing(body)
	}
	return nil, fmt.Errorf("facility %s: %w", path, lastErr)
}

var errStatus = errors.New("unexpected status")

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := httputil.ReadLimited(resp.Body, maxBodyBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d", errStatus, resp.StatusCode)
	}
	return body, nil
}
