package telegram

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	app "ablemap/internal/application"
	"ablemap/internal/container"
	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/scoring"
	"ablemap/internal/infrastructure/httputil"
	"ablemap/internal/infrastructure/logging"
	"ablemap/internal/infrastructure/storage"
	"ablemap/internal/infrastructure/vision"
)

type fakeMessenger struct {
	sent []tgbotapi.Chattable
}

func (m *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, nil
}

func (m *fakeMessenger) GetFileDirectURL(fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (m *fakeMessenger) texts() []string {
	var out []string
	for _, c := range m.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

type decodeValidator struct{}

func (decodeValidator) Validate(_ context.Context, data []byte) (image.Image, error) {
	return vision.Decode(data)
}

type recordingFacilities struct {
	last *entity.LocationDescriptor
}

func (f *recordingFacilities) Lookup(_ context.Context, loc *entity.LocationDescriptor) (*entity.FacilityInfo, error) {
	f.last = loc
	return entity.UnavailableFacility("facility not found"), nil
}

func doorPNG(t *testing.T) []byte {
	t.Helper()
	door := entity.DefaultPalette()[entity.ClassDoor]
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			c := color.RGBA{R: 90, G: 90, B: 90, A: 255}
			if x < 8 {
				c = door
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestBot(t *testing.T) (*Bot, *fakeMessenger, *httputil.MockHTTPClient, *recordingFacilities) {
	t.Helper()
	classes := entity.DefaultClassMap()
	seg, err := vision.NewPaletteSegmenter(classes, entity.DefaultPalette())
	require.NoError(t, err)
	engine, err := scoring.NewEngine(classes, 5)
	require.NoError(t, err)

	facilities := &recordingFacilities{}
	dir := t.TempDir()
	c, err := container.New(storage.NewMemoryUserRepository(), app.AssessmentDeps{
		Validator:  decodeValidator{},
		Segmenter:  seg,
		Engine:     engine,
		Overlay:    vision.NewOverlayRenderer(classes, entity.DefaultPalette()),
		Facilities: facilities,
		Logger:     logging.Nop(),
	}, app.AssessmentConfig{OverlayDir: dir, ReportsDir: dir})
	require.NoError(t, err)

	api := &fakeMessenger{}
	httpClient := httputil.NewMockHTTPClient()
	return newBot(api, c, httpClient, logging.Nop()), api, httpClient, facilities
}

func command(name string) *tgbotapi.Message {
	text := "/" + name
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 10},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func TestBot_Commands(t *testing.T) {
	bot, api, _, _ := newTestBot(t)
	ctx := context.Background()

	bot.handleMessage(ctx, command("start"))
	bot.handleMessage(ctx, command("assess"))
	user, err := bot.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)

	bot.handleMessage(ctx, command("cancel"))
	bot.handleMessage(ctx, command("nope"))
	bot.handleMessage(ctx, &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 10}, Text: "hello"})

	require.Equal(t, []string{msgStart, msgAwaitingPhoto, msgCancelled, msgUnknownCommand, msgSendPhoto}, api.texts())
	user, err = bot.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestBot_LocationThenPhoto(t *testing.T) {
	bot, api, httpClient, facilities := newTestBot(t)
	ctx := context.Background()
	httpClient.AddResponse(http.StatusOK, string(doorPNG(t)))

	bot.handleMessage(ctx, &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 10},
		Location: &tgbotapi.Location{Latitude: 37.5665, Longitude: 126.978},
	})
	bot.handleMessage(ctx, &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 1},
		Chat:  &tgbotapi.Chat{ID: 10},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	})

	require.Equal(t, "https://files.example/large", httpClient.GetRequest(0).URL.String())
	require.True(t, facilities.last.HasCoordinates())
	require.InDelta(t, 37.5665, *facilities.last.Latitude, 1e-9)

	texts := api.texts()
	require.Equal(t, []string{msgLocationSaved, msgProcessing}, texts[:2])
	require.Contains(t, texts[2], "Accessibility score: 10/10")
	require.Contains(t, texts[2], "Door width: wide")

	photo, ok := api.sent[len(api.sent)-1].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	require.Equal(t, overlayCaption, photo.Caption)

	// The location was used once and the user is back in the menu.
	user, err := bot.users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Nil(t, user.Location)
}

func TestBot_InvalidPhoto(t *testing.T) {
	bot, api, httpClient, _ := newTestBot(t)
	httpClient.AddResponse(http.StatusOK, "not an image")

	bot.handleMessage(context.Background(), &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 10},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/jpeg"},
	})

	texts := api.texts()
	require.Len(t, texts, 2)
	require.Contains(t, texts[1], "cannot be assessed")
}

func TestBot_DownloadFailure(t *testing.T) {
	bot, api, httpClient, _ := newTestBot(t)
	httpClient.AddResponse(http.StatusNotFound, "")

	bot.handleMessage(context.Background(), &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 1},
		Chat:  &tgbotapi.Chat{ID: 10},
		Photo: []tgbotapi.PhotoSize{{FileID: "gone"}},
	})
	require.Equal(t, []string{msgProcessing, msgProcessingError}, api.texts())
}

func TestFormatReport(t *testing.T) {
	final := entity.FlexScore(4.6)
	r := &entity.Report{
		Accessibility: &entity.AccessibilityResult{
			Score:            5,
			Obstacles:        []entity.ObstacleTag{entity.ObstacleStairs, entity.ObstacleStairsAtEntrance},
			HasStairsRailing: true,
		},
		Explanation: scoring.Explain(5),
		Facility: &entity.FacilityInfo{
			Available: true,
			Basic:     entity.FacilityRecord{entity.FieldName: "서울시청"},
			Features:  []string{"주출입구 접근로"},
		},
		Narrative: &entity.NarrativeReport{
			FinalScore:      &final,
			Recommendations: []string{"a", "b", "c", "d"},
		},
	}

	text := FormatReport(r)
	require.Contains(t, text, "Accessibility score: 5/10")
	require.Contains(t, text, "stairs right at the entrance")
	require.Contains(t, text, "Railing next to the stairs")
	require.Contains(t, text, "서울시청")
	require.Contains(t, text, "Overall score: 4.6/10")
	require.Contains(t, text, "• c")
	require.NotContains(t, text, "• d")

	r.Narrative = &entity.NarrativeReport{TextResponse: "free text"}
	require.Contains(t, FormatReport(r), "free text")
}
