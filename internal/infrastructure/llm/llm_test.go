package llm

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"net/http"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"ablemap/internal/domain/entity"
	"ablemap/internal/infrastructure/httputil"
	"ablemap/internal/infrastructure/logging"
)

func newTestClient(m *httputil.MockHTTPClient) *Client {
	return NewClient(Config{
		BaseURL:  "http://llm.test/",
		APIKey:   "sk-test",
		Model:    "test-model",
		Backoff:  time.Millisecond,
		RateWait: time.Millisecond,
	}, m, logging.Nop())
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 80, B: 40, A: 255})
		}
	}
	return img
}

func reply(text string) string {
	b, _ := json.Marshal(messagesResponse{Content: []contentBlock{{Type: "text", Text: text}}})
	return string(b)
}

func TestParseResponse(t *testing.T) {
	r := ParseResponse("Here you go:\n```json\n{\"external_accessibility_score\": 5, \"final_accessibility_score\": \"8\", \"recommendations\": [\"add a ramp\"]}\n```")
	require.True(t, r.Structured())
	require.EqualValues(t, 5, *r.ExternalScore)
	require.EqualValues(t, 8, *r.FinalScore)
	require.Equal(t, []string{"add a ramp"}, r.Recommendations)

	r = ParseResponse("  no json here  ")
	require.False(t, r.Structured())
	require.Equal(t, "no json here", r.TextResponse)

	r = ParseResponse("{not: valid}")
	require.Equal(t, "{not: valid}", r.TextResponse)

	r = ParseResponse("} backwards {")
	require.Equal(t, "} backwards {", r.TextResponse)
}

func TestPrompt(t *testing.T) {
	d := 3.0
	res := &entity.AccessibilityResult{
		HasStairs: true,
		HasDoor:   true,
		Obstacles: []entity.ObstacleTag{entity.ObstacleStairs, entity.ObstacleStairsAtEntrance},
		Details: entity.ObstacleDetails{
			Stairs:               &entity.ObjectFinding{PixelCount: 10, Ratio: 0.1, EstimatedSize: entity.SizeMedium},
			StairsToDoorDistance: &d,
		},
		Score: 5,
	}

	p := Prompt(res, entity.UnavailableFacility("facility not found"), "")
	require.Contains(t, p, "Detected obstacles: stairs, stairs_at_entrance")
	require.Contains(t, p, `- stairs: {"pixel_count":10,"ratio":0.1,"estimated_size":"medium"}`)
	require.Contains(t, p, "- stairs_to_door_distance: 3")
	require.NotContains(t, p, "sidewalk_to_door_distance")
	require.Contains(t, p, "(external_accessibility_score): 5/10")
	require.Contains(t, p, "- facility not found")
	require.Contains(t, p, "Answer in Korean")

	info := &entity.FacilityInfo{
		Available: true,
		Basic:     entity.FacilityRecord{entity.FieldName: "서울시청"},
		Features:  []string{"주출입구 접근로"},
		Accessibility: entity.FacilityAccessibility{
			Entrance: entity.FeatureFlag{Available: true, Features: []string{"주출입구 접근로"}},
		},
	}
	p = Prompt(res, info, "English")
	require.Contains(t, p, "- Name: 서울시청")
	require.Contains(t, p, "- Address: unknown")
	require.Contains(t, p, "Entrance: accessible")
	require.Contains(t, p, "Elevator: no or unknown")
	require.Contains(t, p, "Answer in English")
}

func TestThumbnail(t *testing.T) {
	small := solid(10, 20)
	require.Same(t, small, Thumbnail(small, 1024))

	big := Thumbnail(solid(300, 150), 100)
	require.Equal(t, 100, big.Bounds().Dx())
	require.Equal(t, 50, big.Bounds().Dy())
}

func TestRequestAnalysis(t *testing.T) {
	m := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, reply(`{"final_accessibility_score": 7, "observations": ["two steps"]}`))
	c := newTestClient(m)

	r, err := c.RequestAnalysis(context.Background(), []image.Image{solid(4, 4), nil, solid(2000, 10)}, "prompt")
	require.NoError(t, err)
	require.EqualValues(t, 7, *r.FinalScore)
	require.Equal(t, []string{"two steps"}, r.Observations)

	req := m.GetRequest(0)
	require.Equal(t, "/v1/messages", req.URL.Path)
	require.Equal(t, "sk-test", req.Header.Get("x-api-key"))
	require.Equal(t, apiVersion, req.Header.Get("anthropic-version"))

	var sent messagesRequest
	require.NoError(t, json.Unmarshal(m.GetBody(0), &sent))
	require.Equal(t, "test-model", sent.Model)
	require.Contains(t, sent.System, "Korean")
	require.Len(t, sent.Messages, 1)
	blocks := sent.Messages[0].Content
	require.Len(t, blocks, 3)
	require.Equal(t, "prompt", blocks[0].Text)
	require.Equal(t, "image/jpeg", blocks[1].Source.MediaType)
}

func TestRequestAnalysis_RetriesRateLimitAndTransport(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "0")
	m := httputil.NewMockHTTPClient().
		AddResponseWithHeaders(http.StatusTooManyRequests, "", h).
		AddErrorResponse(errors.New("connection refused")).
		AddResponse(http.StatusOK, reply("plain words"))
	c := newTestClient(m)

	r, err := c.RequestAnalysis(context.Background(), nil, "prompt")
	require.NoError(t, err)
	require.Equal(t, "plain words", r.TextResponse)
	require.Equal(t, 3, m.RequestCount())
}

func TestRequestAnalysis_ClientErrorIsNotRetried(t *testing.T) {
	m := httputil.NewMockHTTPClient().AddResponse(http.StatusBadRequest, `{"error":"bad"}`)
	c := newTestClient(m)

	_, err := c.RequestAnalysis(context.Background(), nil, "prompt")
	require.ErrorIs(t, err, entity.ErrLLM)
	require.Contains(t, err.Error(), "400")
	require.Equal(t, 1, m.RequestCount())
}

func TestRequestAnalysis_RetriesExhausted(t *testing.T) {
	m := httputil.NewMockHTTPClient().
		AddErrorResponse(errors.New("timeout")).
		AddErrorResponse(errors.New("timeout")).
		AddErrorResponse(errors.New("timeout"))
	c := newTestClient(m)

	_, err := c.RequestAnalysis(context.Background(), nil, "prompt")
	require.ErrorIs(t, err, entity.ErrLLM)
	require.Contains(t, err.Error(), "retries exhausted")
	require.Equal(t, 3, m.RequestCount())
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abc...", truncate("abcdef", 3))

	// Hangul syllables are three bytes each; 4 bytes splits the second one.
	got := truncate("출입구 계단", 4)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, "출...", got)
}
