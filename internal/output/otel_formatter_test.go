package output

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"pintrace/internal/profile"
)

func newTestFormatter(t *testing.T) (*OTELFormatter, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return NewOTELFormatter(tp.Tracer("test")), recorder
}

func TestOTELFormatter_EmitsSpan(t *testing.T) {
	formatter, recorder := newTestFormatter(t)

	rec := profile.Record{
		"uid":       "helper",
		"caller":    "main",
		"workload":  "10000",
		"type":      "mixed",
		"amount":    uint64(400),
		"tid":       uint64(1),
		"pid":       uint64(1234),
		"timestamp": uint64(1700000000000000),
	}
	assert.True(t, formatter.HandleRecord(rec))

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "helper", span.Name())
	assert.Equal(t, time.UnixMicro(1700000000000000), span.StartTime())
	assert.Equal(t, 400*time.Microsecond, span.EndTime().Sub(span.StartTime()))

	attrs := span.Attributes()
	assert.Contains(t, attrs, attribute.String("profile.caller", "main"))
	assert.Contains(t, attrs, attribute.Int64("profile.amount_us", 400))
	assert.Contains(t, attrs, attribute.Int64("profile.pid", 1234))
}

func TestOTELFormatter_SkipsRecordsWithoutTimestamp(t *testing.T) {
	formatter, recorder := newTestFormatter(t)

	rec := profile.Record{"uid": "BBL#main#0", "amount": uint64(5)}
	assert.False(t, formatter.HandleRecord(rec))
	assert.Empty(t, recorder.Ended())
}
