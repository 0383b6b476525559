package output

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pintrace/internal/profile"
)

// OTELFormatter exports profile records as OpenTelemetry spans. Only records
// carrying a timestamp (time-mode records, microseconds since the epoch) can
// be placed on a timeline; the rest are skipped.
type OTELFormatter struct {
	tracer trace.Tracer
}

// NewOTELFormatter creates a formatter emitting through tracer.
func NewOTELFormatter(tracer trace.Tracer) *OTELFormatter {
	return &OTELFormatter{tracer: tracer}
}

// HandleRecord emits one record as a span: start at the record timestamp,
// duration equal to the record amount. Reports whether a span was emitted.
func (f *OTELFormatter) HandleRecord(rec profile.Record) bool {
	if _, ok := rec["timestamp"]; !ok {
		return false
	}

	startTime := time.UnixMicro(rec.Int("timestamp"))
	endTime := startTime.Add(time.Duration(rec.Int("amount")) * time.Microsecond)

	_, span := f.tracer.Start(context.Background(), rec.String("uid"),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(startTime),
	)

	span.SetAttributes(
		attribute.String("profile.caller", rec.String("caller")),
		attribute.String("profile.workload", rec.String("workload")),
		attribute.String("profile.type", rec.String("type")),
		attribute.Int64("profile.amount_us", rec.Int("amount")),
		attribute.Int64("profile.tid", rec.Int("tid")),
		attribute.Int64("profile.pid", rec.Int("pid")),
	)

	span.End(trace.WithTimestamp(endTime))
	return true
}
