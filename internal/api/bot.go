package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "ablemap/internal/application"
	"ablemap/internal/container"
	"ablemap/internal/domain/entity"
	"ablemap/internal/domain/port"
	"ablemap/internal/infrastructure/httputil"
)

const (
	msgStart = `👋 Hi! I rate how accessible a building entrance is for wheelchair users.

📸 Send me a photo of the entrance and I will score it from 1 to 10.

📋 Commands:
/assess — start an assessment
/help — help
/cancel — cancel the current operation`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Optionally share the location of the building (📎 → Location)
2️⃣ Send a photo of the entrance
3️⃣ You get a score, the obstacles found and a colour overlay

💡 Tips:
• Photograph the whole entrance including steps and the door
• Shoot in daylight, avoid glare
• Send the photo as a file to keep its GPS data

📋 Commands:
/assess — start an assessment
/cancel — cancel the operation`

	msgAwaitingPhoto   = "📸 Send a photo of the building entrance."
	msgCancelled       = "❌ Cancelled. Send /assess to start a new assessment."
	msgSendPhoto       = "📸 Please send a photo of the building entrance."
	msgUnknownCommand  = "❓ Unknown command. Use /help."
	msgProcessing      = "⏳ Analysing the entrance..."
	msgLocationSaved   = "📍 Location saved. It will be used for your next photo."
	msgPoorQuality     = "⚠️ The photo cannot be assessed: %v. Please take another one."
	msgProcessingError = "⚠️ Failed to process the image. Please try another photo."
	overlayCaption     = "🎨 Detected objects"
	maxRecommendations = 3
)

// messenger is the part of tgbotapi.BotAPI the bot uses.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot is the Telegram front end of the assessment service.
type Bot struct {
	api         messenger
	updates     func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	stop        func()
	users       *app.UserService
	assessments *app.AssessmentService
	http        httputil.HTTPClient
	log         port.Logger
}

// NewBot authorises token and creates the bot.
func NewBot(token string, c *container.Container, logger port.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Printf("Authorized on account %s", api.Self.UserName)

	b := newBot(api, c, http.DefaultClient, logger)
	b.updates = api.GetUpdatesChan
	b.stop = api.StopReceivingUpdates
	return b, nil
}

func newBot(api messenger, c *container.Container, httpClient httputil.HTTPClient, logger port.Logger) *Bot {
	return &Bot{
		api:         api,
		users:       c.UserService,
		assessments: c.AssessmentService,
		http:        httpClient,
		log:         logger,
	}
}

// Run handles updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.updates(u)

	for {
		select {
		case <-ctx.Done():
			b.stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Printf("Error getting user: %v", err)
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg, user)
	case msg.Location != nil:
		b.handleLocation(ctx, msg, user)
	case len(msg.Photo) > 0:
		// Largest size last.
		b.handlePhoto(ctx, msg, user, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		b.handlePhoto(ctx, msg, user, msg.Document.FileID)
	default:
		b.sendMessage(msg.Chat.ID, msgSendPhoto)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	var err error
	switch msg.Command() {
	case "start":
		_, err = b.users.SetState(ctx, user.ID, user.ChatID, entity.StateMainMenu)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "assess":
		_, err = b.users.BeginAssessment(ctx, user.ID, user.ChatID)
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		_, err = b.users.Cancel(ctx, user.ID, user.ChatID)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
	if err != nil {
		b.log.Printf("Error updating user %d: %v", user.ID, err)
	}
}

func (b *Bot) handleLocation(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	if _, err := b.users.RememberLocation(ctx, user.ID, user.ChatID, msg.Location.Latitude, msg.Location.Longitude); err != nil {
		b.log.Printf("Error saving location: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}
	b.sendMessage(msg.Chat.ID, msgLocationSaved)
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User, fileID string) {
	if _, err := b.users.SetState(ctx, user.ID, user.ChatID, entity.StateProcessing); err != nil {
		b.log.Printf("Error updating user %d: %v", user.ID, err)
	}
	// The stored location applies to one photo only.
	defer func() {
		if _, err := b.users.Cancel(ctx, user.ID, user.ChatID); err != nil {
			b.log.Printf("Error resetting user %d: %v", user.ID, err)
		}
	}()

	b.sendMessage(msg.Chat.ID, msgProcessing)

	imageData, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.log.Printf("Error downloading photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	out, err := b.assessments.AssessPhoto(ctx, imageData, user.Location)
	if err != nil {
		b.log.Printf("Error assessing photo: %v", err)
		if errors.Is(err, entity.ErrImageInvalid) {
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgPoorQuality, err))
			return
		}
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	b.sendMessage(msg.Chat.ID, FormatReport(out.Report))

	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{Name: "overlay.png", Bytes: out.Overlay})
	photo.Caption = overlayCaption
	if _, err := b.api.Send(photo); err != nil {
		b.log.Printf("Error sending overlay: %v", err)
	}
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: http %d", resp.StatusCode)
	}

	data, err := httputil.ReadLimited(resp.Body, maxPhotoBytes)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// Telegram bots may download files up to 20 MB.
const maxPhotoBytes = 20 << 20

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Printf("Error sending message: %v", err)
	}
}

var obstacleText = map[entity.ObstacleTag]string{
	entity.ObstacleStairs:               "stairs in view",
	entity.ObstacleStairsAtEntrance:     "stairs right at the entrance",
	entity.ObstacleDisconnectedSidewalk: "sidewalk does not reach the door",
}

// FormatReport renders a report as a chat message.
func FormatReport(r *entity.Report) string {
	var sb strings.Builder
	res := r.Accessibility

	fmt.Fprintf(&sb, "♿ Accessibility score: %d/10\n%s\n", res.Score, r.Explanation)

	if len(res.Obstacles) > 0 {
		sb.WriteString("\n🚧 Obstacles:\n")
		for _, tag := range res.Obstacles {
			text, ok := obstacleText[tag]
			if !ok {
				text = string(tag)
			}
			fmt.Fprintf(&sb, "• %s\n", text)
		}
	}
	if res.HasStairsRailing {
		sb.WriteString("✅ Railing next to the stairs\n")
	}
	if res.Details.Door != nil {
		fmt.Fprintf(&sb, "🚪 Door width: %s\n", res.Details.Door.EstimatedWidth)
	}

	if f := r.Facility; f != nil && f.Available {
		fmt.Fprintf(&sb, "\n🏢 %s\n", f.Basic.Name())
		if len(f.Features) > 0 {
			fmt.Fprintf(&sb, "Registered features: %s\n", strings.Join(f.Features, ", "))
		}
	}

	if n := r.Narrative; n != nil && n.Structured() {
		if n.FinalScore != nil {
			fmt.Fprintf(&sb, "\n📝 Overall score: %.1f/10\n", float64(*n.FinalScore))
		}
		if len(n.Recommendations) > 0 {
			sb.WriteString("💡 Recommendations:\n")
			for _, rec := range n.Recommendations[:min(len(n.Recommendations), maxRecommendations)] {
				fmt.Fprintf(&sb, "• %s\n", rec)
			}
		}
	} else if n != nil && n.TextResponse != "" {
		fmt.Fprintf(&sb, "\n📝 %s\n", n.TextResponse)
	}

	return strings.TrimRight(sb.String(), "\n")
}
