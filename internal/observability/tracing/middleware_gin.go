package tracing

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/freightdesk/internal/observability/context"
	"github.com/smallbiznis/freightdesk/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "freightdesk/http"

// GinMiddleware opens a server span per request on the global tracer provider.
func GinMiddleware() gin.HandlerFunc {
	return middleware(otel.GetTracerProvider())
}

func middleware(tp trace.TracerProvider) gin.HandlerFunc {
	tracer := tp.Tracer(tracerName)
	return func(c *gin.Context) {
		method := c.Request.Method
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(semconv.HTTPRequestMethodKey.String(method)),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(status))
		span.SetAttributes(SafeAttributes(requestAttributes(c, start)...)...)

		if status < http.StatusInternalServerError {
			return
		}
		if last := c.Errors.Last(); last != nil {
			span.RecordError(SafeError(last.Err))
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// requestAttributes reads the tenant fields after the handlers ran, since the
// session middleware fills them in further down the chain.
func requestAttributes(c *gin.Context, start time.Time) []attribute.KeyValue {
	ctx := c.Request.Context()
	attrs := []attribute.KeyValue{
		attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
	}
	for key, value := range map[string]string{
		"request_id":     obscontext.RequestIDFromContext(ctx),
		"correlation_id": correlation.ExtractCorrelationID(ctx),
		"org_id":         obscontext.OrgIDFromContext(ctx),
		"org_type":       obscontext.OrgTypeFromContext(ctx),
	} {
		if value != "" {
			attrs = append(attrs, attribute.String(key, value))
		}
	}
	return attrs
}
