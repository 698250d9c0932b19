package entity

// UserState is the dialogue state of a bot user.
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // idle
	StateAwaitingPhoto UserState = "awaiting_photo" // waiting for an entrance photo
	StateProcessing    UserState = "processing"     // assessment running
)

// User is a chat user of the bot.
type User struct {
	ID       int64               // Telegram user ID
	ChatID   int64               // Telegram chat ID
	State    UserState           // current state
	Location *LocationDescriptor // last shared location, used for the next photo
}

// NewUser creates a user in the main menu.
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState updates the user state.
func (u *User) SetState(state UserState) {
	u.State = state
}

// RememberLocation stores coordinates for the next assessment.
func (u *User) RememberLocation(lat, lon float64) {
	u.Location = &LocationDescriptor{Latitude: &lat, Longitude: &lon}
}

// ForgetLocation drops the stored location.
func (u *User) ForgetLocation() {
	u.Location = nil
}
