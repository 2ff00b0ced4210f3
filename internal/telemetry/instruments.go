package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// JobInstruments records generation and gating metrics.
type JobInstruments struct {
	jobsTotal     metric.Int64Counter
	jobDuration   metric.Float64Histogram
	refundsTotal  metric.Int64Counter
	rejectedTotal metric.Int64Counter
}

// NewJobInstruments registers the bot's instruments on meter.
func NewJobInstruments(meter metric.Meter) (*JobInstruments, error) {
	jobsTotal, err := meter.Int64Counter(
		"clipbot_jobs_total",
		metric.WithDescription("Generation jobs resolved, by kind and status"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		"clipbot_job_duration_seconds",
		metric.WithDescription("Time from submission to resolution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	refundsTotal, err := meter.Int64Counter(
		"clipbot_refunds_total",
		metric.WithDescription("Credits refunded after failed jobs"),
	)
	if err != nil {
		return nil, err
	}

	rejectedTotal, err := meter.Int64Counter(
		"clipbot_rejections_total",
		metric.WithDescription("Submissions rejected before a credit was debited"),
	)
	if err != nil {
		return nil, err
	}

	return &JobInstruments{
		jobsTotal:     jobsTotal,
		jobDuration:   jobDuration,
		refundsTotal:  refundsTotal,
		rejectedTotal: rejectedTotal,
	}, nil
}

// NopInstruments returns instruments backed by a no-op meter.
func NopInstruments() *JobInstruments {
	ins, _ := NewJobInstruments(noop.NewMeterProvider().Meter(meterName))
	return ins
}

// JobResolved records one terminal job.
func (j *JobInstruments) JobResolved(ctx context.Context, kind, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	)
	j.jobsTotal.Add(ctx, 1, attrs)
	j.jobDuration.Record(ctx, d.Seconds(), attrs)
}

// Refunded records one refunded credit.
func (j *JobInstruments) Refunded(ctx context.Context) {
	j.refundsTotal.Add(ctx, 1)
}

// Rejected records one gated submission.
func (j *JobInstruments) Rejected(ctx context.Context, reason string) {
	j.rejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
