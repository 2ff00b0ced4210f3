package dispatcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/joebot/clipbot/internal/bus"
	"github.com/joebot/clipbot/internal/composer"
	"github.com/joebot/clipbot/internal/generation"
)

const settleTimeout = 30 * time.Second

// pendingJob is a launched job together with who asked for it. settled
// flips once, so the state goes away with the job.
type pendingJob struct {
	job      *generation.Job
	identity bus.Identity
	channel  string
	chatID   string

	settled atomic.Bool
}

// launch submits the job and settles it in the background once it resolves.
func (d *Dispatcher) launch(ctx context.Context, ev *bus.InboundEvent, req generation.Request) {
	p := &pendingJob{
		job:      d.generator.Submit(ctx, req),
		identity: ev.Identity,
		channel:  ev.Channel,
		chatID:   ev.ChatID,
	}
	slog.Info("Job launched", "identity", ev.Identity, "job", p.job.ID, "kind", req.Kind.String(), "prompt", req.Prompt)

	d.jobs.Add(1)
	go func() {
		defer d.jobs.Done()
		<-p.job.Done()
		// Settlement must finish even when the dispatcher is shutting down.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
		defer cancel()
		d.settle(sctx, p)
	}()
}

// settle delivers a resolved job's result, or reports the failure and refunds
// the debited credit. Each job is settled at most once.
func (d *Dispatcher) settle(ctx context.Context, p *pendingJob) {
	if !p.settled.CompareAndSwap(false, true) {
		slog.Warn("Job already settled", "job", p.job.ID)
		return
	}

	out := p.job.Outcome()
	req := p.job.Request
	status := "success"
	if out.Failure != nil {
		status = "failed"
	}
	d.metrics.JobResolved(ctx, req.Kind.String(), status, p.job.Duration())

	channel, chatID := d.destination(p)
	if out.Failure != nil {
		d.refund(ctx, p, out.Failure)
		msg := d.screens.Failure(categoryOf(out.Failure))
		msg.Channel, msg.ChatID, msg.Identity = channel, chatID, p.identity
		d.bus.PublishOutbound(&msg)
		return
	}

	video := d.screens.Video(out.URL)
	video.Channel, video.ChatID, video.Identity = channel, chatID, p.identity
	if err := d.bus.Deliver(ctx, &video); err != nil {
		// The provider already did the work; a failed upload is not refunded.
		slog.Error("Video delivery failed", "identity", p.identity, "job", p.job.ID, "url", out.URL, "err", err)
		return
	}

	ready := d.screens.VideoReady(req.Prompt)
	ready.Channel, ready.ChatID, ready.Identity = channel, chatID, p.identity
	conv, release := d.conversations.Acquire(p.identity)
	conv.Remember(ready)
	release()
	d.bus.PublishOutbound(&ready)
}

// destination returns where the identity was last seen, falling back to
// where the job was requested.
func (d *Dispatcher) destination(p *pendingJob) (channel, chatID string) {
	conv, release := d.conversations.Acquire(p.identity)
	defer release()
	if conv.Channel != "" && conv.ChatID != "" {
		return conv.Channel, conv.ChatID
	}
	return p.channel, p.chatID
}

func (d *Dispatcher) refund(ctx context.Context, p *pendingJob, f *generation.Failure) {
	balance, err := d.store.AddCredits(ctx, p.identity, 1)
	if err != nil {
		slog.Error("Refund failed", "identity", p.identity, "job", p.job.ID, "err", err)
		return
	}
	d.metrics.Refunded(ctx)
	slog.Info("Credit refunded", "identity", p.identity, "job", p.job.ID, "failure", f.Kind.String(), "reason", f.Reason, "balance", balance)
}

func categoryOf(f *generation.Failure) composer.Category {
	switch f.Kind {
	case generation.SubmissionFailed, generation.TransportFailed:
		return composer.CategoryRetryLater
	default:
		return composer.ClassifyReason(f.Reason)
	}
}
