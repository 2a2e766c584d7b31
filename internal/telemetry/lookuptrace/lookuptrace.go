// Package lookuptrace creates spans only for the RPCs belonging to a
// routed lookup, so a multi-hop find_successor chain renders as a single
// trace instead of flooding the exporter with maintenance noise.
package lookuptrace

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerKey  = "X-Chord-Lookup"
	tracerName = "chorddht/lookuptrace"
)

type ctxKey struct{}

var tracer = otel.Tracer(tracerName)

// WithLookup marks ctx as belonging to a routed lookup.
func WithLookup(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, true)
}

// IsLookup reports whether ctx belongs to a routed lookup.
func IsLookup(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKey{}).(bool)
	return v
}

// Inject marks an outbound request as lookup traffic and propagates the
// trace context into its headers. Outside a lookup it does nothing.
func Inject(ctx context.Context, header http.Header) {
	if !IsLookup(ctx) {
		return
	}
	header.Set(headerKey, "true")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}

// StartClient opens a client-side span for an outbound RPC that is part
// of a lookup; the returned func ends it. Outside a lookup both are
// no-ops.
func StartClient(ctx context.Context, operation string) (context.Context, func()) {
	if !IsLookup(ctx) {
		return ctx, func() {}
	}
	ctx, span := tracer.Start(ctx, operation, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, func() { span.End() }
}

// Middleware creates server spans for storage operations (the lookup
// initiators) and for find_successor hops that a peer marked as lookup
// traffic. Everything else passes through untraced.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			path := req.URL.Path
			flagged := req.Header.Get(headerKey) == "true"
			switch {
			case strings.HasPrefix(path, "/storage/"):
				ctx = WithLookup(ctx)
			case path == "/api/find_successor" && flagged:
				ctx = WithLookup(ctx)
			default:
				c.SetRequest(req.WithContext(ctx))
				return next(c)
			}

			ctx, span := tracer.Start(ctx, req.Method+" "+path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
