package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("org_id", "123"),
		attribute.String("inquiry_id", "456"),
		attribute.String("service_type", "sea_fcl"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	require.Contains(t, keys, attribute.Key("org_id"))
	require.Contains(t, keys, attribute.Key("service_type"))
}

func TestRecordersToleratesNilAndNoop(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.RecordQuotationSubmitted(context.Background(), "free")

	m, err := New(Config{ServiceName: "freightdesk"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordInquirySent(context.Background(), "air")
	m.RecordQuotationDecision(context.Background(), "accepted")
	m.RecordItemsExpired(context.Background(), "inquiry", 3)
}
