package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	inquiriesSent       metric.Int64Counter
	quotationsSubmitted metric.Int64Counter
	quotationDecisions  metric.Int64Counter
	itemsExpired        metric.Int64Counter
	rateLimitAllowed    metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
}

// NewProvider installs the global meter provider. Disabled telemetry gets a
// noop provider so instruments can be created unconditionally.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName(cfg)),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("metrics resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)
	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	if log != nil {
		log.Info("otel metrics exporting",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
			zap.Duration("interval", exportInterval),
		)
	}
	return provider, nil
}

const exportInterval = 10 * time.Second

func serviceName(cfg Config) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return "freightdesk"
}

// New creates the marketplace counters on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName(cfg))
	m := &Metrics{}
	for _, c := range []struct {
		into *metric.Int64Counter
		name string
		desc string
	}{
		{&m.inquiriesSent, "freightdesk_inquiries_sent_total", "Inquiries sent to forwarders."},
		{&m.quotationsSubmitted, "freightdesk_quotations_submitted_total", "Quotations submitted by forwarders."},
		{&m.quotationDecisions, "freightdesk_quotation_decisions_total", "Shipper accept and reject decisions."},
		{&m.itemsExpired, "freightdesk_items_expired_total", "Inquiries and quotations expired by the sweep."},
		{&m.rateLimitAllowed, "freightdesk_rate_limit_allowed_total", "Write requests let through by the org rate limiter."},
		{&m.rateLimitDenied, "freightdesk_rate_limit_denied_total", "Write requests refused by the org rate limiter."},
	} {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.into = counter
	}
	return m, nil
}

func (m *Metrics) add(ctx context.Context, counter metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if m == nil || n <= 0 {
		return
	}
	counter.Add(ctx, n, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

// RecordInquirySent counts inquiries sent out, labelled by service type.
func (m *Metrics) RecordInquirySent(ctx context.Context, serviceType string) {
	if m != nil {
		m.add(ctx, m.inquiriesSent, 1, label("service_type", serviceType))
	}
}

func (m *Metrics) RecordQuotationSubmitted(ctx context.Context, orgTier string) {
	if m != nil {
		m.add(ctx, m.quotationsSubmitted, 1, label("org_tier", orgTier))
	}
}

// RecordQuotationDecision counts shipper decisions (accepted, rejected).
func (m *Metrics) RecordQuotationDecision(ctx context.Context, decision string) {
	if m != nil {
		m.add(ctx, m.quotationDecisions, 1, label("decision", decision))
	}
}

func (m *Metrics) RecordItemsExpired(ctx context.Context, kind string, count int) {
	if m != nil {
		m.add(ctx, m.itemsExpired, int64(count), label("kind", kind))
	}
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, orgID, endpoint string) {
	if m != nil {
		m.add(ctx, m.rateLimitAllowed, 1, label("org_id", orgID), label("endpoint", endpoint))
	}
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, endpoint, reason string) {
	if m != nil {
		m.add(ctx, m.rateLimitDenied, 1, label("org_id", orgID), label("endpoint", endpoint), label("reason", reason))
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":       {},
	"org_tier":     {},
	"endpoint":     {},
	"status_code":  {},
	"service_type": {},
	"decision":     {},
	"kind":         {},
	"reason":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
