package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/briefkit/briefkit"

// Instruments traces and counts flushes, the unit of work that turns
// assistant text into session state. Built on the global providers, so
// it records nothing until Init has enabled telemetry.
type Instruments struct {
	tracer trace.Tracer

	flushTotal    metric.Int64Counter
	flushDuration metric.Float64Histogram
	artifacts     metric.Int64Counter
	stageChanges  metric.Int64Counter
}

// FlushOutcome summarizes one flush for EndFlush.
type FlushOutcome struct {
	Artifacts   int
	StageBefore int
	StageAfter  int
	Changed     bool
	Err         error
}

// NewInstruments creates the flush instruments.
func NewInstruments() (*Instruments, error) {
	meter := otel.Meter(instrumentationName)
	in := &Instruments{tracer: otel.Tracer(instrumentationName)}

	var err error
	in.flushTotal, err = meter.Int64Counter("briefkit.flush.total",
		metric.WithDescription("Total number of flushes"),
		metric.WithUnit("{flush}"))
	if err != nil {
		return nil, err
	}

	in.flushDuration, err = meter.Float64Histogram("briefkit.flush.duration",
		metric.WithDescription("Flush duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1))
	if err != nil {
		return nil, err
	}

	in.artifacts, err = meter.Int64Counter("briefkit.flush.artifacts",
		metric.WithDescription("Artifacts found by flushes"),
		metric.WithUnit("{artifact}"))
	if err != nil {
		return nil, err
	}

	in.stageChanges, err = meter.Int64Counter("briefkit.flush.stage_changes",
		metric.WithDescription("Flushes that moved the session to another stage"),
		metric.WithUnit("{change}"))
	if err != nil {
		return nil, err
	}

	return in, nil
}

// StartFlush opens a span for one flush of messageID in sessionID.
func (in *Instruments) StartFlush(ctx context.Context, transport, sessionID, messageID string) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "briefkit.flush",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("briefkit.transport", transport),
			attribute.String("briefkit.session_id", sessionID),
			attribute.String("briefkit.message_id", messageID),
		))
}

// EndFlush records the outcome and ends span.
func (in *Instruments) EndFlush(ctx context.Context, span trace.Span, transport string, start time.Time, out FlushOutcome) {
	defer span.End()

	status := "ok"
	if out.Err != nil {
		status = "error"
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	span.SetAttributes(
		attribute.Int("briefkit.artifacts", out.Artifacts),
		attribute.Int("briefkit.stage_before", out.StageBefore),
		attribute.Int("briefkit.stage_after", out.StageAfter),
		attribute.Bool("briefkit.changed", out.Changed),
	)

	attrs := metric.WithAttributes(
		attribute.String("transport", transport),
		attribute.String("status", status),
	)
	in.flushTotal.Add(ctx, 1, attrs)
	in.flushDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if out.Artifacts > 0 {
		in.artifacts.Add(ctx, int64(out.Artifacts), metric.WithAttributes(attribute.String("transport", transport)))
	}
	if out.StageAfter != out.StageBefore {
		in.stageChanges.Add(ctx, 1, metric.WithAttributes(attribute.Int("stage", out.StageAfter)))
	}
}
