package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/freightdesk/internal/observability/context"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func newTracedEngine(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	r := gin.New()
	r.Use(middleware(tp))
	return r, rec
}

func TestMiddlewareRecordsRouteAndOrg(t *testing.T) {
	r, rec := newTracedEngine(t)
	r.GET("/inquiries/:id", func(c *gin.Context) {
		ctx := obscontext.WithOrgID(c.Request.Context(), "100")
		ctx = obscontext.WithOrgType(ctx, "shipper")
		c.Request = c.Request.WithContext(ctx)
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/inquiries/42", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "HTTP GET /inquiries/:id", spans[0].Name())
	require.Equal(t, trace.SpanKindServer, spans[0].SpanKind())

	attrs := spanAttrs(spans[0])
	require.Equal(t, "/inquiries/:id", attrs["http.route"].AsString())
	require.EqualValues(t, http.StatusOK, attrs["http.response.status_code"].AsInt64())
	require.Equal(t, "100", attrs["org_id"].AsString())
	require.Equal(t, "shipper", attrs["org_type"].AsString())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestMiddlewareMarksServerErrors(t *testing.T) {
	r, rec := newTracedEngine(t)
	r.POST("/quotations", func(c *gin.Context) {
		_ = c.Error(errors.New("db unavailable"))
		c.Status(http.StatusServiceUnavailable)
	})
	r.GET("/missing-ok", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/quotations", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing-ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	spans := rec.Ended()
	require.Len(t, spans, 3)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
	require.Equal(t, codes.Unset, spans[1].Status().Code)
	require.Equal(t, "HTTP GET unmatched", spans[2].Name())
}
