package middlewares

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TraceRequests opens a server span per request so downstream logs and
// audit entries carry trace and span ids. With no tracer provider installed
// this is a no-op span and costs nothing.
func TraceRequests(next http.Handler) http.Handler {
	tracer := otel.Tracer("httpx")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
