package bus

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultQueueSize is the buffer size of the inbound and outbound queues.
const DefaultQueueSize = 64

// OutboundHandler is a callback for outbound messages on a specific channel.
type OutboundHandler func(ctx context.Context, msg *OutboundMessage) error

// MessageBus decouples chat channels from the dispatcher using Go channels.
type MessageBus struct {
	Inbound  chan *InboundEvent
	Outbound chan *OutboundMessage

	mu          sync.RWMutex
	subscribers map[string][]OutboundHandler
}

// NewMessageBus creates a new message bus with buffered channels.
func NewMessageBus(size int) *MessageBus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &MessageBus{
		Inbound:     make(chan *InboundEvent, size),
		Outbound:    make(chan *OutboundMessage, size),
		subscribers: make(map[string][]OutboundHandler),
	}
}

// PublishInbound queues an event from a channel for the dispatcher.
func (b *MessageBus) PublishInbound(ev *InboundEvent) {
	b.Inbound <- ev
}

// PublishOutbound queues a message for delivery to its channel.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.Outbound <- msg
}

// Deliver sends msg synchronously through the channel's subscribers and
// returns the first error. Used when the caller must know whether delivery
// succeeded.
func (b *MessageBus) Deliver(ctx context.Context, msg *OutboundMessage) error {
	b.mu.RLock()
	handlers := b.subscribers[msg.Channel]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return &NoSubscriberError{Channel: msg.Channel}
	}
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a handler for outbound messages on a specific channel.
func (b *MessageBus) Subscribe(channel string, handler OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = append(b.subscribers[channel], handler)
}

// DispatchOutbound reads from the outbound queue and dispatches to subscribers.
// Blocks until ctx is cancelled.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.Outbound:
			b.mu.RLock()
			handlers := b.subscribers[msg.Channel]
			b.mu.RUnlock()
			if len(handlers) == 0 {
				slog.Warn("No subscriber for outbound message", "channel", msg.Channel)
				continue
			}
			for _, h := range handlers {
				if err := h(ctx, msg); err != nil {
					slog.Warn("Dispatch outbound failed, attempting recovery", "channel", msg.Channel, "err", err)
					b.recoverSend(ctx, h, msg)
				}
			}
		}
	}
}

// recoverSend tries progressively simpler versions of a message that failed
// to send, and finally a short notice so the user knows something went wrong.
func (b *MessageBus) recoverSend(ctx context.Context, h OutboundHandler, original *OutboundMessage) {
	// Without the keyboard: buttons are the most common reason a transport rejects a payload.
	if len(original.Keyboard) > 0 {
		plain := &OutboundMessage{
			Channel:  original.Channel,
			ChatID:   original.ChatID,
			Identity: original.Identity,
			Text:     original.Text,
			VideoURL: original.VideoURL,
		}
		if err := h(ctx, plain); err == nil {
			slog.Info("Recovery: sent without keyboard", "channel", original.Channel)
			return
		}
	}

	if len(original.Text) > maxRecoveredText {
		truncated := &OutboundMessage{
			Channel:  original.Channel,
			ChatID:   original.ChatID,
			Identity: original.Identity,
			Text:     original.Text[:maxRecoveredText] + "\n\n[message truncated]",
		}
		if err := h(ctx, truncated); err == nil {
			slog.Info("Recovery: sent truncated message", "channel", original.Channel)
			return
		}
	}

	fallback := &OutboundMessage{
		Channel:  original.Channel,
		ChatID:   original.ChatID,
		Identity: original.Identity,
		Text:     "Sorry, I ran into a technical issue and couldn't deliver my response. Please try again.",
	}
	if err := h(ctx, fallback); err != nil {
		slog.Error("Recovery: all strategies failed, unable to notify user", "channel", original.Channel, "err", err)
	}
}

const maxRecoveredText = 1500

// NoSubscriberError is returned by Deliver when nothing listens on a channel.
type NoSubscriberError struct {
	Channel string
}

func (e *NoSubscriberError) Error() string {
	return "bus: no subscriber for channel " + e.Channel
}
