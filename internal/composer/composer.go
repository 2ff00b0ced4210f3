// Package composer renders the bot's screens into outbound messages.
package composer

import (
	"fmt"
	"strings"

	"github.com/joebot/clipbot/internal/bus"
)

// Composer builds outbound messages. It is safe for concurrent use.
type Composer struct {
	packages    []Package
	byID        map[string]Package
	examplesURL string
	support     string
}

// Option configures a Composer.
type Option func(*Composer)

// WithExamplesURL appends a link to example prompts on balance notes.
func WithExamplesURL(u string) Option {
	return func(c *Composer) { c.examplesURL = strings.TrimSpace(u) }
}

// WithSupportContact is shown in the generic failure message.
func WithSupportContact(s string) Option {
	return func(c *Composer) { c.support = strings.TrimSpace(s) }
}

func New(packages []Package, opts ...Option) *Composer {
	if len(packages) == 0 {
		packages = DefaultPackages()
	}
	c := &Composer{
		packages: packages,
		byID:     make(map[string]Package, len(packages)),
	}
	for _, p := range packages {
		c.byID[p.ID] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Package looks up a catalogue entry by action ID.
func (c *Composer) Package(id string) (Package, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c *Composer) Welcome() bus.OutboundMessage {
	text := "🎬 Hi! I turn your ideas into 10-second videos, from a text description or a picture.\n" +
		"💡 How it works:\n" +
		"1️⃣ Send me a text or an image with your idea.\n" +
		"2️⃣ I turn it into a short video clip.\n" +
		"💳 To get started, pick a package below:"
	return msg(text, c.packageKeyboard())
}

func (c *Composer) Packages() bus.OutboundMessage {
	return msg("Choose a package to top up your balance:", c.packageKeyboard())
}

func (c *Composer) PurchaseConfirmed(p Package, balance int) bus.OutboundMessage {
	var text string
	if p.Gift {
		text = fmt.Sprintf("🎁 Congratulations!\n\nYou received %d free video generation(s)! ✨\nNow you can create a clip from text or a picture.", p.Credits)
	} else {
		text = fmt.Sprintf("🎉 Thank you for your purchase!\n\nYour balance was topped up with %d video generation(s).\n✨ You can now create clips from text or a picture.", p.Credits)
	}
	return msg(text+c.balanceNote(balance), mainMenuKeyboard())
}

// MainMenu shows the main menu with text, or a default heading when text is empty.
func (c *Composer) MainMenu(text string) bus.OutboundMessage {
	if strings.TrimSpace(text) == "" {
		text = "Main menu"
	}
	return msg(text, mainMenuKeyboard())
}

func (c *Composer) ReturningToMenu() bus.OutboundMessage {
	return c.MainMenu("Back to the main menu.")
}

func (c *Composer) LowBalance() bus.OutboundMessage {
	return c.MainMenu("⚠ You have run out of video generations.\n💎 Please top up your balance 💎")
}

func (c *Composer) FormatSelection() bus.OutboundMessage {
	return msg("📽 Choose a frame format 📽", Keyboard(
		Row(Button("🖥 Landscape (16:9)", ActionFormat16x9), Button("📱 Portrait (9:16)", ActionFormat9x16)),
		Row(Button("Back", ActionFormatBack)),
	))
}

func (c *Composer) DescriptionPrompt(balance int) bus.OutboundMessage {
	return msg("✏ Send me a description and I will generate the video!"+c.balanceNote(balance), backKeyboard())
}

func (c *Composer) UploadPrompt(balance int) bus.OutboundMessage {
	return msg("✏ Send me an image, optionally with a caption, and I will generate the video!"+c.balanceNote(balance), backKeyboard())
}

func (c *Composer) GenerationStarted(balance int) bus.OutboundMessage {
	text := "⏳ Got it! Generating the video takes about 3 minutes. I will send it here as soon as it is ready 🎬"
	return msg(text+c.balanceNote(balance), secondaryMenuKeyboard())
}

// VideoReady follows a delivered video and quotes the prompt it was made from.
func (c *Composer) VideoReady(prompt string) bus.OutboundMessage {
	text := "✅ Your video is ready!"
	if p := strings.TrimSpace(prompt); p != "" {
		text += "\n💾 Prompt:\n" + quote(p)
	}
	return msg(text, secondaryMenuKeyboard())
}

// Video carries the generated clip.
func (c *Composer) Video(url string) bus.OutboundMessage {
	return bus.OutboundMessage{Text: url, VideoURL: url}
}

func (c *Composer) TooLong(limit int) bus.OutboundMessage {
	return msg(fmt.Sprintf("📝 Your request is too long.\nPlease shorten it to fewer than %d characters.", limit+1), nil)
}

func (c *Composer) RateLimited() bus.OutboundMessage {
	return msg("Too many requests. Please wait a moment and try again.", nil)
}

func (c *Composer) InsufficientBalance() bus.OutboundMessage {
	return c.MainMenu("You have no video generations left. Please top up your balance.")
}

func (c *Composer) ImageUnavailable() bus.OutboundMessage {
	return msg("Could not read the image file. Please send it again.", backKeyboard())
}

func (c *Composer) RetryLater() bus.OutboundMessage {
	return c.Failure(CategoryRetryLater)
}

func (c *Composer) Unrecognized() bus.OutboundMessage {
	return c.MainMenu("I did not understand that. Please choose an action from the menu.")
}

func (c *Composer) UnexpectedImage() bus.OutboundMessage {
	return c.MainMenu("Image received, but I was expecting something else. Please choose an action from the menu.")
}

func (c *Composer) NoHistory() bus.OutboundMessage {
	return msg("Sorry, I can't find the previous message...", nil)
}

// Failure renders the user-facing message for a failed job.
func (c *Composer) Failure(cat Category) bus.OutboundMessage {
	var text string
	switch cat {
	case CategoryPolicyBlocked:
		text = "🔒 Your request was blocked by the safety system.\n" +
			"It looks like the text contains phrases the model is not allowed to generate.\n" +
			"Try rephrasing it without sensitive content 🙏"
	case CategoryRealPerson:
		text = "Sorry, we can't generate videos from photos of real people yet. Please try something else."
	case CategoryRetryLater:
		text = "⚠ Something went wrong while starting your video. Your credit has been returned, please try again later."
	default:
		text = "🚧 Generation is temporarily unavailable 🚧\nWe are already working on it. Please try again later"
		if c.support != "" {
			text += " or contact support " + c.support
		}
		text += "."
	}
	return msg(text, nil)
}

func (c *Composer) balanceNote(balance int) string {
	note := fmt.Sprintf("\n\n> 💎 Generations left: %d.", balance)
	if c.examplesURL != "" {
		note += "\n> 📩 Examples and tips: " + c.examplesURL
	}
	return note
}

func (c *Composer) packageKeyboard() bus.Keyboard {
	var rows bus.Keyboard
	for _, p := range c.packages {
		if p.Hidden {
			continue
		}
		rows = append(rows, Row(Button(p.Label, p.ID)))
	}
	return rows
}

func mainMenuKeyboard() bus.Keyboard {
	return Keyboard(
		Row(Button("Generate a video from text", ActionGenerateText)),
		Row(Button("Generate a video from an image", ActionGenerateImg)),
		Row(Button("Top up balance", ActionRecharge)),
	)
}

func secondaryMenuKeyboard() bus.Keyboard {
	return Keyboard(
		Row(Button("Generate a new video from text", ActionGenerateText)),
		Row(Button("Generate a new video from an image", ActionGenerateImg)),
		Row(Button("Top up balance", ActionRecharge)),
		Row(Button("Main menu", ActionMenuBack)),
	)
}

func backKeyboard() bus.Keyboard {
	return Keyboard(Row(Button("Back", ActionFormatBack)))
}

// Button, Row and Keyboard are small constructors for keyboards.
func Button(label, action string) bus.Button { return bus.Button{Label: label, Action: action} }

func Row(buttons ...bus.Button) []bus.Button { return buttons }

func Keyboard(rows ...[]bus.Button) bus.Keyboard { return bus.Keyboard(rows) }

func msg(text string, kb bus.Keyboard) bus.OutboundMessage {
	return bus.OutboundMessage{Text: text, Keyboard: kb}
}

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
