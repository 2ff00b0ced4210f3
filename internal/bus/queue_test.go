package bus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("1234567890123456789")
	if err != nil {
		t.Fatal(err)
	}
	if id.String() != "1234567890123456789" {
		t.Errorf("round trip = %s", id)
	}
	if _, err := ParseIdentity("not-a-number"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestDeliverRoutesByChannel(t *testing.T) {
	b := NewMessageBus(0)
	var got []string
	b.Subscribe("discord", func(_ context.Context, msg *OutboundMessage) error {
		got = append(got, msg.Text)
		return nil
	})

	if err := b.Deliver(context.Background(), &OutboundMessage{Channel: "discord", Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "hi" {
		t.Errorf("got %v", got)
	}

	err := b.Deliver(context.Background(), &OutboundMessage{Channel: "console"})
	var nse *NoSubscriberError
	if !errors.As(err, &nse) {
		t.Errorf("err = %v, want NoSubscriberError", err)
	}
}

func TestDispatchOutboundRecoversWithoutKeyboard(t *testing.T) {
	b := NewMessageBus(4)

	var mu sync.Mutex
	var sent []*OutboundMessage
	done := make(chan struct{})
	b.Subscribe("discord", func(_ context.Context, msg *OutboundMessage) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, msg)
		if len(msg.Keyboard) > 0 {
			return errors.New("components rejected")
		}
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{
		Channel:  "discord",
		Text:     "menu",
		Keyboard: Keyboard{{{Label: "Go", Action: "menu_back"}}},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recovery send never happened")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[1].Text != "menu" || len(sent[1].Keyboard) != 0 {
		t.Errorf("recovered message = %+v", sent[1])
	}
}

func TestRecoverSendFallsBackToNotice(t *testing.T) {
	b := NewMessageBus(0)
	var texts []string
	h := func(_ context.Context, msg *OutboundMessage) error {
		texts = append(texts, msg.Text)
		if strings.HasPrefix(msg.Text, "Sorry") {
			return nil
		}
		return errors.New("rejected")
	}

	b.recoverSend(context.Background(), h, &OutboundMessage{Channel: "x", Text: strings.Repeat("a", 2000)})

	if len(texts) != 2 {
		t.Fatalf("attempts = %d, want truncated + notice", len(texts))
	}
	if !strings.HasSuffix(texts[0], "[message truncated]") {
		t.Errorf("first attempt not truncated: %q", texts[0][len(texts[0])-30:])
	}
}
