package connector

import "context"

// Connector is a chat front end for one role (one bot per role).
type Connector interface {
	Messenger
	// Name returns the connector type and role (e.g., "telegram/DA").
	Name() string
	// Start begins listening for inbound events. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the connector.
	Stop() error
	// FileURL resolves a platform file reference to a downloadable URL.
	FileURL(ctx context.Context, fileID string) (string, error)
}

// Messenger delivers outbound messages to chats.
type Messenger interface {
	// Send delivers a message and returns the platform message ID.
	Send(ctx context.Context, msg OutboundMessage) (int, error)
	// Edit replaces the text and buttons of an earlier bot message.
	Edit(ctx context.Context, msg EditMessage) error
}

// EventKind classifies inbound events.
type EventKind string

const (
	EventText     EventKind = "text"
	EventCallback EventKind = "callback"
	EventPhoto    EventKind = "photo"
	EventCommand  EventKind = "command"
)

// User identifies the sender of an event.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Event is an inbound message or button press in a role-scoped chat.
type Event struct {
	Kind   EventKind
	ChatID int64
	User   User

	Text        string // message text, caption, or command name without the slash
	Data        string // callback payload
	PhotoFileID string // largest photo size, when Kind is EventPhoto

	// The bot message a callback button belongs to.
	MessageID       int
	MessageHasPhoto bool
}

// Handler processes inbound events.
type Handler func(ctx context.Context, ev Event) error

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Row is a convenience for building single-button keyboard rows.
func Row(text, data string) []Button {
	return []Button{{Text: text, Data: data}}
}

// OutboundMessage is a text or photo message with optional buttons.
// Text may use **bold** markup.
type OutboundMessage struct {
	ChatID     int64
	Text       string
	PhotoURL   string // sent as photo with Text as caption when set
	Buttons    [][]Button
	ForceReply bool
}

// EditMessage edits a previously sent message in place.
type EditMessage struct {
	ChatID    int64
	MessageID int
	HasPhoto  bool // edit the caption instead of the text
	Text      string
	Buttons   [][]Button
}
