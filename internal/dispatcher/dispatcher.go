// Package dispatcher drives conversations: it drains inbound events, applies
// the menu state machine, gates and launches generation jobs, and settles
// their outcomes.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joebot/clipbot/internal/account"
	"github.com/joebot/clipbot/internal/bus"
	"github.com/joebot/clipbot/internal/composer"
	"github.com/joebot/clipbot/internal/conversation"
	"github.com/joebot/clipbot/internal/generation"
	"github.com/joebot/clipbot/internal/ratelimit"
	"github.com/joebot/clipbot/internal/telemetry"
)

const (
	DefaultWorkers = 4
	// DefaultMaxPromptLength is the longest accepted prompt, in characters.
	DefaultMaxPromptLength = 9999
)

// Generator starts generation jobs. *generation.Orchestrator implements it.
type Generator interface {
	Submit(ctx context.Context, req generation.Request) *generation.Job
}

// Config holds the collaborators of a Dispatcher.
type Config struct {
	Bus           *bus.MessageBus
	Store         account.Store
	Generator     Generator
	Conversations *conversation.Manager
	Limiter       *ratelimit.Limiter[bus.Identity]
	Composer      *composer.Composer
	Metrics       *telemetry.JobInstruments

	Workers         int
	MaxPromptLength int
}

// Dispatcher is the core event processing engine.
type Dispatcher struct {
	bus           *bus.MessageBus
	store         account.Store
	generator     Generator
	conversations *conversation.Manager
	limiter       *ratelimit.Limiter[bus.Identity]
	screens       *composer.Composer
	metrics       *telemetry.JobInstruments

	workers         int
	maxPromptLength int

	jobs sync.WaitGroup
}

// New creates a dispatcher. Missing optional collaborators get defaults.
func New(cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxPromptLength <= 0 {
		cfg.MaxPromptLength = DefaultMaxPromptLength
	}
	if cfg.Conversations == nil {
		cfg.Conversations = conversation.NewManager(0)
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New[bus.Identity](ratelimit.DefaultCapacity, ratelimit.DefaultRefillPeriod)
	}
	if cfg.Composer == nil {
		cfg.Composer = composer.New(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopInstruments()
	}

	return &Dispatcher{
		bus:             cfg.Bus,
		store:           cfg.Store,
		generator:       cfg.Generator,
		conversations:   cfg.Conversations,
		limiter:         cfg.Limiter,
		screens:         cfg.Composer,
		metrics:         cfg.Metrics,
		workers:         cfg.Workers,
		maxPromptLength: cfg.MaxPromptLength,
	}
}

// Run processes inbound events with a pool of workers until ctx is cancelled.
// Events of one identity are serialized by its conversation lock; different
// identities proceed in parallel.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("Dispatcher started", "workers", d.workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	err := g.Wait()
	slog.Info("Dispatcher stopping")
	return err
}

// Wait blocks until every launched job has been settled.
func (d *Dispatcher) Wait() {
	d.jobs.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.bus.Inbound:
			if ev == nil {
				continue
			}
			d.handle(ctx, ev)
		}
	}
}

// reply addresses msg to the event's chat, optionally records it for back
// navigation, and queues it.
func (d *Dispatcher) reply(conv *conversation.Conversation, ev *bus.InboundEvent, msg bus.OutboundMessage, remember bool) {
	msg.Channel = ev.Channel
	msg.ChatID = ev.ChatID
	msg.Identity = ev.Identity
	if remember {
		conv.Remember(msg)
	}
	d.bus.PublishOutbound(&msg)
}
