package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joebot/clipbot/internal/account"
	"github.com/joebot/clipbot/internal/bus"
	"github.com/joebot/clipbot/internal/composer"
	"github.com/joebot/clipbot/internal/conversation"
	"github.com/joebot/clipbot/internal/generation"
)

// Rejection reasons reported to metrics.
const (
	rejectTooLong      = "too_long"
	rejectRateLimited  = "rate_limited"
	rejectNoBalance    = "insufficient_balance"
	rejectNoImage      = "image_unavailable"
	rejectStoreFailure = "store_error"
)

// handle applies one event to its identity's conversation.
func (d *Dispatcher) handle(ctx context.Context, ev *bus.InboundEvent) {
	conv, release := d.conversations.Acquire(ev.Identity)
	defer release()

	conv.Channel = ev.Channel
	conv.ChatID = ev.ChatID

	before := conv.State
	switch ev.Kind {
	case bus.EventStart:
		d.onStart(ctx, conv, ev)
	case bus.EventButton:
		d.onButton(ctx, conv, ev)
	case bus.EventText:
		d.onText(ctx, conv, ev)
	case bus.EventImage:
		d.onImage(ctx, conv, ev)
	default:
		d.reply(conv, ev, d.screens.Unrecognized(), false)
	}

	if conv.State != before {
		slog.Debug("Conversation transition", "identity", ev.Identity, "from", before.String(), "to", conv.State.String(), "event", ev.Kind.String())
	}
}

func (d *Dispatcher) onStart(ctx context.Context, conv *conversation.Conversation, ev *bus.InboundEvent) {
	conv.AwaitPackage()
	if _, err := d.store.FindOrCreate(ctx, ev.Identity); err != nil {
		slog.Error("Find or create account failed", "identity", ev.Identity, "err", err)
	}
	d.reply(conv, ev, d.screens.Welcome(), true)
}

func (d *Dispatcher) onButton(ctx context.Context, conv *conversation.Conversation, ev *bus.InboundEvent) {
	action := strings.TrimSpace(ev.ActionID)

	// Package buttons stay clickable on old messages, so any state accepts them.
	if pkg, ok := d.screens.Package(action); ok {
		d.purchase(ctx, conv, ev, pkg)
		return
	}

	switch action {
	case composer.ActionGenerateText:
		conv.Reset()
		balance, ok := d.balance(ctx, conv, ev)
		if !ok {
			return
		}
		if balance <= 0 {
			d.reply(conv, ev, d.screens.LowBalance(), false)
			return
		}
		conv.AwaitFormat()
		d.reply(conv, ev, d.screens.FormatSelection(), true)

	case composer.ActionGenerateImg:
		conv.Reset()
		balance, ok := d.balance(ctx, conv, ev)
		if !ok {
			return
		}
		if balance <= 0 {
			d.reply(conv, ev, d.screens.LowBalance(), false)
			return
		}
		conv.AwaitImage()
		d.reply(conv, ev, d.screens.UploadPrompt(balance), true)

	case composer.ActionRecharge:
		conv.AwaitPackage()
		d.reply(conv, ev, d.screens.Packages(), true)

	case composer.ActionFormat16x9, composer.ActionFormat9x16:
		if conv.State != conversation.AwaitingFormatSelection {
			d.reply(conv, ev, d.screens.Unrecognized(), false)
			return
		}
		balance, ok := d.balance(ctx, conv, ev)
		if !ok {
			return
		}
		format := conversation.FormatPortrait
		if action == composer.ActionFormat16x9 {
			format = conversation.FormatLandscape
		}
		conv.ChooseFormat(format)
		d.reply(conv, ev, d.screens.DescriptionPrompt(balance), true)

	case composer.ActionFormatBack:
		switch conv.State {
		case conversation.AwaitingFormatSelection, conversation.AwaitingTextDescription, conversation.AwaitingImageUpload:
		default:
			d.reply(conv, ev, d.screens.Unrecognized(), false)
			return
		}
		conv.Reset()
		prev, ok := conv.PreviousScreen()
		if !ok {
			d.reply(conv, ev, d.screens.NoHistory(), false)
			return
		}
		// Replayed as-is; replaying does not push onto the history again.
		d.reply(conv, ev, prev, false)

	case composer.ActionMenuBack:
		conv.Reset()
		d.reply(conv, ev, d.screens.ReturningToMenu(), true)

	default:
		slog.Debug("Unknown button", "identity", ev.Identity, "action", action)
		d.reply(conv, ev, d.screens.Unrecognized(), false)
	}
}

func (d *Dispatcher) purchase(ctx context.Context, conv *conversation.Conversation, ev *bus.InboundEvent, pkg composer.Package) {
	balance, err := d.store.AddCredits(ctx, ev.Identity, pkg.Credits)
	if err != nil {
		slog.Error("Add credits failed", "identity", ev.Identity, "package", pkg.ID, "err", err)
		d.reply(conv, ev, d.screens.RetryLater(), false)
		return
	}
	slog.Info("Credits added", "identity", ev.Identity, "package", pkg.ID, "credits", pkg.Credits, "balance", balance)
	conv.Reset()
	d.reply(conv, ev, d.screens.PurchaseConfirmed(pkg, balance), true)
}

func (d *Dispatcher) onText(ctx context.Context, conv *conversation.Conversation, ev *bus.InboundEvent) {
	if conv.State != conversation.AwaitingTextDescription {
		d.reply(conv, ev, d.screens.Unrecognized(), false)
		return
	}
	d.submit(ctx, conv, ev, generation.Request{
		Kind:   generation.TextToVideo,
		Aspect: generation.AspectFor(string(conv.Format)),
		Prompt: ev.Text,
	})
}

func (d *Dispatcher) onImage(ctx context.Context, conv *conversation.Conversation, ev *bus.InboundEvent) {
	if conv.State != conversation.AwaitingImageUpload {
		d.reply(conv, ev, d.screens.UnexpectedImage(), false)
		return
	}
	// Image jobs always render landscape.
	d.submit(ctx, conv, ev, generation.Request{
		Kind:     generation.ImageToVideo,
		Aspect:   generation.Landscape,
		Prompt:   strings.TrimSpace(ev.Caption),
		ImageURL: strings.TrimSpace(ev.ImageURL),
	})
}

// submit gates a request and, when every gate passes, debits one credit and
// launches the job. A rejected request leaves the state unchanged so the
// user can resend.
func (d *Dispatcher) submit(ctx context.Context, conv *conversation.Conversation, ev *bus.InboundEvent, req generation.Request) {
	id := ev.Identity

	if utf8.RuneCountInString(req.Prompt) > d.maxPromptLength {
		d.reject(ctx, conv, ev, rejectTooLong, d.screens.TooLong(d.maxPromptLength))
		return
	}
	if !d.limiter.TryConsume(id) {
		d.reject(ctx, conv, ev, rejectRateLimited, d.screens.RateLimited())
		return
	}
	acc, err := d.store.FindOrCreate(ctx, id)
	if err != nil {
		slog.Error("Load account failed", "identity", id, "err", err)
		d.reject(ctx, conv, ev, rejectStoreFailure, d.screens.RetryLater())
		return
	}
	if acc.Balance <= 0 {
		d.reject(ctx, conv, ev, rejectNoBalance, d.screens.InsufficientBalance())
		return
	}
	if req.Kind == generation.ImageToVideo && req.ImageURL == "" {
		d.reject(ctx, conv, ev, rejectNoImage, d.screens.ImageUnavailable())
		return
	}

	balance, err := d.store.ConsumeOneCredit(ctx, id)
	if errors.Is(err, account.ErrInsufficientBalance) {
		d.reject(ctx, conv, ev, rejectNoBalance, d.screens.InsufficientBalance())
		return
	}
	if err != nil {
		slog.Error("Debit failed", "identity", id, "err", err)
		d.reject(ctx, conv, ev, rejectStoreFailure, d.screens.RetryLater())
		return
	}

	conv.Reset()
	d.reply(conv, ev, d.screens.GenerationStarted(balance), true)
	d.launch(ctx, ev, req)
}

func (d *Dispatcher) reject(ctx context.Context, conv *conversation.Conversation, ev *bus.InboundEvent, reason string, msg bus.OutboundMessage) {
	slog.Info("Submission rejected", "identity", ev.Identity, "reason", reason)
	d.metrics.Rejected(ctx, reason)
	d.reply(conv, ev, msg, false)
}

// balance reads the identity's balance, replying with a retry notice on error.
func (d *Dispatcher) balance(ctx context.Context, conv *conversation.Conversation, ev *bus.InboundEvent) (int, bool) {
	acc, err := d.store.FindOrCreate(ctx, ev.Identity)
	if err != nil {
		slog.Error("Load account failed", "identity", ev.Identity, "err", err)
		d.reply(conv, ev, d.screens.RetryLater(), false)
		return 0, false
	}
	return acc.Balance, true
}
