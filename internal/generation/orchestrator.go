package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultInitialDelay = 2 * time.Minute
	DefaultPollInterval = 30 * time.Second
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Orchestrator submits jobs to a Provider and resolves each one in its own
// poll goroutine.
type Orchestrator struct {
	provider     Provider
	initialDelay time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
	sleep        Sleeper
	now          func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDelays sets the wait before the first poll and between polls.
// Non-positive values keep the defaults.
func WithDelays(initial, interval time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if initial > 0 {
			o.initialDelay = initial
		}
		if interval > 0 {
			o.pollInterval = interval
		}
	}
}

// WithMaxWait bounds the total time a job may spend polling. 0 is unbounded.
func WithMaxWait(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.maxWait = d
		}
	}
}

// WithSleeper replaces the wait function (tests).
func WithSleeper(s Sleeper) OrchestratorOption {
	return func(o *Orchestrator) {
		if s != nil {
			o.sleep = s
		}
	}
}

// NewOrchestrator creates an orchestrator over the given provider.
func NewOrchestrator(p Provider, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		provider:     p,
		initialDelay: DefaultInitialDelay,
		pollInterval: DefaultPollInterval,
		sleep:        sleepContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Job is one in-flight or finished generation.
type Job struct {
	ID          string
	Request     Request
	SubmittedAt time.Time

	mu         sync.Mutex
	taskID     string
	state      JobState
	outcome    Outcome
	finishedAt time.Time
	done       chan struct{}
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// State returns the current lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// TaskID returns the provider task ID, empty until submission succeeds.
func (j *Job) TaskID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.taskID
}

// Outcome returns the terminal outcome. Only meaningful after Done is closed.
func (j *Job) Outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome
}

// Duration is the time from submission to resolution, or 0 while running.
func (j *Job) Duration() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finishedAt.IsZero() {
		return 0
	}
	return j.finishedAt.Sub(j.SubmittedAt)
}

// Wait blocks until the job resolves or ctx is done.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
		return j.Outcome(), nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (j *Job) setState(s JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *Job) setTaskID(id string) {
	j.mu.Lock()
	j.taskID = id
	j.state = Polling
	j.mu.Unlock()
}

func (j *Job) finish(out Outcome, at time.Time) {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.outcome = out
	j.finishedAt = at
	if out.Failure != nil {
		j.state = Failed
	} else {
		j.state = Succeeded
	}
	j.mu.Unlock()
	close(j.done)
}

// Submit starts a job and returns immediately. The job resolves in the
// background; cancelling ctx resolves it as TransportFailed.
func (o *Orchestrator) Submit(ctx context.Context, req Request) *Job {
	job := &Job{
		ID:          uuid.NewString(),
		Request:     req,
		SubmittedAt: o.now(),
		state:       Submitted,
		done:        make(chan struct{}),
	}
	go o.run(ctx, job)
	return job
}

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	out := o.resolve(ctx, job)
	job.finish(out, o.now())

	if out.Failure != nil {
		slog.Warn("Job failed", "job", job.ID, "task", job.TaskID(), "kind", out.Failure.Kind.String(), "reason", out.Failure.Reason, "err", out.Failure.Err)
		return
	}
	slog.Info("Job succeeded", "job", job.ID, "task", job.TaskID(), "url", out.URL)
}

func (o *Orchestrator) resolve(ctx context.Context, job *Job) Outcome {
	if o.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.maxWait)
		defer cancel()
	}

	taskID, err := o.provider.CreateTask(ctx, job.Request)
	if err != nil {
		if errors.Is(err, ErrNoTaskID) {
			return failed(SubmissionFailed, "", err)
		}
		return failed(TransportFailed, "", fmt.Errorf("create task: %w", err))
	}
	job.setTaskID(taskID)
	slog.Info("Job submitted", "job", job.ID, "task", taskID, "kind", job.Request.Kind.String(), "aspect", string(job.Request.Aspect))

	if err := o.sleep(ctx, o.initialDelay); err != nil {
		return failed(TransportFailed, "", fmt.Errorf("wait before first poll: %w", err))
	}

	for {
		rec, err := o.provider.RecordInfo(ctx, taskID)
		if err != nil {
			return failed(TransportFailed, "", fmt.Errorf("record info: %w", err))
		}

		switch strings.ToLower(strings.TrimSpace(rec.State)) {
		case "success":
			u, err := ExtractResultURL(rec.ResultJSON)
			if err != nil {
				return failed(ExtractionFailed, "", err)
			}
			return Outcome{URL: u}
		case "failed", "fail":
			return failed(ProviderFailed, rec.FailureReason(), nil)
		default:
			slog.Debug("Job still running", "job", job.ID, "task", taskID, "state", rec.State)
		}

		if err := o.sleep(ctx, o.pollInterval); err != nil {
			return failed(TransportFailed, "", fmt.Errorf("wait between polls: %w", err))
		}
	}
}

func failed(kind FailureKind, reason string, err error) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Reason: reason, Err: err}}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
