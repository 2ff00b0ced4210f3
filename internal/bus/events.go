package bus

import (
	"strconv"
	"time"
)

// Identity identifies one chat participant. It is stable for the lifetime
// of a conversation.
type Identity int64

// ParseIdentity converts a transport user ID (e.g. a Discord snowflake).
func ParseIdentity(s string) (Identity, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Identity(n), nil
}

func (id Identity) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// EventKind is the type of an inbound event.
type EventKind int

const (
	EventStart EventKind = iota
	EventButton
	EventText
	EventImage
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventButton:
		return "button"
	case EventText:
		return "text"
	case EventImage:
		return "image"
	default:
		return "unknown"
	}
}

// InboundEvent is an event received from a chat channel.
type InboundEvent struct {
	Kind      EventKind
	Channel   string
	Identity  Identity
	ChatID    string // where replies go; may differ from Identity (e.g. a Discord channel)
	ActionID  string // EventButton
	Text      string // EventText
	ImageURL  string // EventImage
	Caption   string // EventImage, optional
	Timestamp time.Time
	Metadata  map[string]any
}

// Button is a single action button.
type Button struct {
	Label  string
	Action string
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// OutboundMessage is a message to send to a chat channel.
type OutboundMessage struct {
	Channel  string
	ChatID   string
	Identity Identity
	Text     string
	Keyboard Keyboard
	VideoURL string
	Metadata map[string]any
}

// HasVideo reports whether the message carries a generated video.
func (m *OutboundMessage) HasVideo() bool {
	return m.VideoURL != ""
}
