package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ablemap/internal/domain/entity"
	"ablemap/internal/infrastructure/httputil"
	"ablemap/internal/infrastructure/logging"
)

func newTestClient(m httputil.HTTPClient, endpoint string) *Client {
	c := NewClient(Config{
		Endpoint: endpoint,
		APIKey:   "report-key",
		Backoff:  time.Millisecond,
		RateWait: time.Millisecond,
	}, m, logging.Nop())
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func testReport() *entity.Report {
	return &entity.Report{
		ImagePath:     "images/a.jpg",
		OverlayPath:   "overlays/a_overlay.png",
		Accessibility: &entity.AccessibilityResult{Score: 8, Obstacles: []entity.ObstacleTag{}},
		Narrative:     &entity.NarrativeReport{Observations: []string{"flat"}},
	}
}

func TestSend_Success(t *testing.T) {
	m := httputil.NewMockHTTPClient().AddResponse(http.StatusCreated, `{"id": "r-1"}`)
	c := newTestClient(m, "http://report.test/api/")

	out, err := c.Send(context.Background(), testReport())
	require.NoError(t, err)
	require.Equal(t, "r-1", out["id"])

	req := m.GetRequest(0)
	require.Equal(t, "http://report.test/api", req.URL.String())
	require.Equal(t, "Bearer report-key", req.Header.Get("Authorization"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(m.GetBody(0), &sent))
	require.Equal(t, "images/a.jpg", sent["image_path"])
	require.Equal(t, "2026-01-02T03:04:05Z", sent["timestamp"])
	require.Contains(t, sent, "ai_analysis")
	require.NotContains(t, sent, "facility")
}

func TestSend_NonJSONReply(t *testing.T) {
	m := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, "ok")
	out, err := newTestClient(m, "http://report.test").Send(context.Background(), testReport())
	require.NoError(t, err)
	require.Equal(t, "success", out["status"])
}

func TestSend_RetriesRateLimitAndServerErrors(t *testing.T) {
	m := httputil.NewMockHTTPClient().
		AddResponse(http.StatusTooManyRequests, "").
		AddResponse(http.StatusServiceUnavailable, "").
		AddResponse(http.StatusOK, `{"ok": true}`)

	out, err := newTestClient(m, "http://report.test").Send(context.Background(), testReport())
	require.NoError(t, err)
	require.Equal(t, true, out["ok"])
	require.Equal(t, 3, m.RequestCount())
}

func TestSend_ClientErrorNotRetried(t *testing.T) {
	m := httputil.NewMockHTTPClient().AddResponse(http.StatusUnprocessableEntity, "bad payload")

	_, err := newTestClient(m, "http://report.test").Send(context.Background(), testReport())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	require.Equal(t, "bad payload", se.Body)
	require.Equal(t, 1, m.RequestCount())
}

func TestSend_RetriesExhausted(t *testing.T) {
	m := httputil.NewMockHTTPClient().
		AddErrorResponse(errors.New("refused")).
		AddErrorResponse(errors.New("refused")).
		AddErrorResponse(errors.New("refused"))

	_, err := newTestClient(m, "http://report.test").Send(context.Background(), testReport())
	require.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" || r.Header.Get("Authorization") != "Bearer report-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.Client(), srv.URL)
	require.NoError(t, c.Ping(context.Background()))

	c = newTestClient(srv.Client(), srv.URL+"/other")
	require.Error(t, c.Ping(context.Background()))
}
