// Package conversation holds the per-identity conversation state: where the
// user is in the menu flow, the video format they picked, and the screens
// they were recently shown.
package conversation

import (
	"time"

	"github.com/joebot/clipbot/internal/bus"
	"github.com/joebot/clipbot/internal/history"
)

// State is a position in the conversation flow.
type State int

const (
	Initial State = iota
	AwaitingPackageSelection
	AwaitingFormatSelection
	AwaitingTextDescription
	AwaitingImageUpload
)

func (s State) String() string {
	switch s {
	case Initial:
		return "INITIAL"
	case AwaitingPackageSelection:
		return "AWAITING_PACKAGE_SELECTION"
	case AwaitingFormatSelection:
		return "AWAITING_FORMAT_SELECTION"
	case AwaitingTextDescription:
		return "AWAITING_TEXT_DESCRIPTION"
	case AwaitingImageUpload:
		return "AWAITING_IMAGE_UPLOAD"
	default:
		return "UNKNOWN"
	}
}

// Format is the frame format picked for a text-to-video job.
type Format string

const (
	FormatNone      Format = ""
	FormatLandscape Format = "16:9"
	FormatPortrait  Format = "9:16"
)

// Conversation is the state of one identity. It must only be touched while
// holding the lock handed out by Manager.Acquire.
type Conversation struct {
	Identity bus.Identity
	State    State
	Format   Format
	History  *history.Ring[bus.OutboundMessage]

	// Channel and ChatID of the latest inbound event; asynchronous job
	// results are delivered there.
	Channel string
	ChatID  string

	CreatedAt time.Time
	LastSeen  time.Time
}

func newConversation(id bus.Identity, ringSize int, now time.Time) *Conversation {
	return &Conversation{
		Identity:  id,
		State:     Initial,
		History:   history.NewRing[bus.OutboundMessage](ringSize),
		CreatedAt: now,
		LastSeen:  now,
	}
}

// Reset returns to the main menu state. The selected format is kept, as
// only the format and upload prompts change it.
func (c *Conversation) Reset() {
	c.State = Initial
}

// AwaitPackage moves to package selection.
func (c *Conversation) AwaitPackage() {
	c.State = AwaitingPackageSelection
}

// AwaitFormat moves to format selection for a text-to-video job.
func (c *Conversation) AwaitFormat() {
	c.State = AwaitingFormatSelection
}

// ChooseFormat records the format and waits for the text description.
func (c *Conversation) ChooseFormat(f Format) {
	c.Format = f
	c.State = AwaitingTextDescription
}

// AwaitImage waits for an image upload. Image jobs use a fixed aspect, so
// any previously selected format is cleared.
func (c *Conversation) AwaitImage() {
	c.Format = FormatNone
	c.State = AwaitingImageUpload
}

// Remember records a screen shown to the user for back navigation.
func (c *Conversation) Remember(msg bus.OutboundMessage) {
	c.History.Record(msg)
}

// PreviousScreen returns the screen to restore on "back".
func (c *Conversation) PreviousScreen() (bus.OutboundMessage, bool) {
	return c.History.LastBeforeMostRecent()
}
