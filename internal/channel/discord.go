package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/joebot/clipbot/internal/bus"
	"github.com/joebot/clipbot/internal/config"
)

const (
	discordName = "discord"

	// Discord rejects messages longer than this.
	discordMaxContent = 2000
	// and buttons beyond 5 per row / 5 rows, or labels beyond 80 characters.
	discordMaxButtons = 5
	discordMaxRows    = 5
	discordMaxLabel   = 80
)

// discordSession is the subset of *discordgo.Session used by Discord.
type discordSession interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Discord receives messages and button presses over the Discord gateway
// and sends replies with button rows.
type Discord struct {
	config  config.DiscordConfig
	bus     *bus.MessageBus
	session discordSession

	removers []func()
	cancel   context.CancelFunc
}

// NewDiscord creates a Discord channel backed by a discordgo session.
func NewDiscord(cfg config.DiscordConfig, b *bus.MessageBus) (*Discord, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("discord bot token not configured")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	return newDiscordWithSession(cfg, b, s), nil
}

func newDiscordWithSession(cfg config.DiscordConfig, b *bus.MessageBus, s discordSession) *Discord {
	return &Discord{config: cfg, bus: b, session: s}
}

func (d *Discord) Name() string { return discordName }

// Start opens the gateway connection and blocks until ctx is cancelled.
// discordgo reconnects on its own after transient disconnects.
func (d *Discord) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	d.removers = append(d.removers,
		d.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			slog.Info("Discord gateway READY", "user", r.User.Username)
		}),
		d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			d.onMessageCreate(m)
		}),
		d.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
			d.onInteractionCreate(i)
		}),
	)

	slog.Info("Connecting to Discord gateway...")
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Stop disconnects from Discord.
func (d *Discord) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	for _, remove := range d.removers {
		remove()
	}
	d.removers = nil
	return d.session.Close()
}

// Send posts a message to the chat's Discord channel.
func (d *Discord) Send(_ context.Context, msg *bus.OutboundMessage) error {
	content := msg.Text
	if msg.HasVideo() && !strings.Contains(content, msg.VideoURL) {
		content = strings.TrimSpace(content + "\n" + msg.VideoURL)
	}
	send := &discordgo.MessageSend{
		Content:    truncateRunes(content, discordMaxContent),
		Components: keyboardComponents(msg.Keyboard),
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := d.session.ChannelMessageSendComplex(msg.ChatID, send)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	return fmt.Errorf("send discord message: %w", lastErr)
}

func (d *Discord) onMessageCreate(m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	if m.Author.Bot || m.Author.ID == "" || m.ChannelID == "" {
		return
	}
	if !IsAllowed(m.Author.ID, d.config.AllowFrom) {
		slog.Debug("Discord sender not allowed", "user", m.Author.ID)
		return
	}
	id, err := bus.ParseIdentity(m.Author.ID)
	if err != nil {
		slog.Warn("Discord user id is not numeric", "user", m.Author.ID, "err", err)
		return
	}

	ev := &bus.InboundEvent{
		Channel:   discordName,
		Identity:  id,
		ChatID:    m.ChannelID,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"message_id": m.ID,
			"guild_id":   m.GuildID,
		},
	}

	content := strings.TrimSpace(m.Content)
	switch {
	case isStartCommand(content):
		ev.Kind = bus.EventStart
	case firstImage(m.Attachments) != nil:
		ev.Kind = bus.EventImage
		ev.ImageURL = firstImage(m.Attachments).URL
		ev.Caption = content
	default:
		ev.Kind = bus.EventText
		ev.Text = content
	}
	d.bus.PublishInbound(ev)
}

func (d *Discord) onInteractionCreate(i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil || !IsAllowed(user.ID, d.config.AllowFrom) {
		return
	}

	// Acknowledge within Discord's 3s window; the reply arrives as a new message.
	err := d.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		slog.Warn("Discord interaction ack failed", "err", err)
	}

	id, err := bus.ParseIdentity(user.ID)
	if err != nil {
		slog.Warn("Discord user id is not numeric", "user", user.ID, "err", err)
		return
	}
	d.bus.PublishInbound(&bus.InboundEvent{
		Kind:      bus.EventButton,
		Channel:   discordName,
		Identity:  id,
		ChatID:    i.ChannelID,
		ActionID:  i.MessageComponentData().CustomID,
		Timestamp: time.Now(),
		Metadata:  map[string]any{"interaction_id": i.ID},
	})
}

func isStartCommand(content string) bool {
	c := strings.ToLower(content)
	return c == "/start" || c == "!start"
}

func firstImage(atts []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, a := range atts {
		if a != nil && strings.HasPrefix(strings.ToLower(a.ContentType), "image/") {
			return a
		}
	}
	return nil
}

func keyboardComponents(kb bus.Keyboard) []discordgo.MessageComponent {
	if len(kb) == 0 {
		return nil
	}
	var rows []discordgo.MessageComponent
	for _, row := range kb {
		if len(rows) == discordMaxRows {
			slog.Warn("Discord keyboard truncated", "rows", len(kb))
			break
		}
		var buttons []discordgo.MessageComponent
		for _, b := range row {
			if len(buttons) == discordMaxButtons {
				break
			}
			buttons = append(buttons, discordgo.Button{
				Label:    truncateRunes(b.Label, discordMaxLabel),
				Style:    discordgo.PrimaryButton,
				CustomID: b.Action,
			})
		}
		if len(buttons) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: buttons})
		}
	}
	return rows
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// retryable reports whether a REST error is worth another attempt.
// discordgo already waits out 429s itself.
func retryable(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode >= 500
	}
	return true
}
