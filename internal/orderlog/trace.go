package orderlog

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Annotate copies the trace and span ids of the active OpenTelemetry span in
// ctx onto the entry. If ctx carries no valid span (unit tests, background
// jobs) the fields are left empty and the entry is still usable.
func Annotate(ctx context.Context, entry *Entry) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	entry.TraceID = sc.TraceID().String()
	entry.SpanID = sc.SpanID().String()
}
