package metricspush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/freightdesk/internal/config"
	obstracing "github.com/smallbiznis/freightdesk/internal/observability/tracing"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	exporterRemoteWrite = "prometheus_remote_write"
	exporterPushgateway = "prometheus_pushgateway"

	pushTimeout  = 5 * time.Second
	maxErrorBody = 256
)

// Pusher sends one registry snapshot to a collector. Push is called from the
// worker loop only; implementations start no goroutines.
type Pusher interface {
	Push(ctx context.Context, registry *prometheus.Registry) error
}

// NewPusher returns nil when pushing is off. A bad push config is logged and
// disables pushing instead of failing startup.
func NewPusher(cfg config.Config, logger *zap.Logger) Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p, err := newPusher(cfg)
	if err != nil {
		logger.Warn("metrics push disabled", zap.Error(err))
		return nil
	}
	return p
}

func newPusher(cfg config.Config) (Pusher, error) {
	m := cfg.Metrics
	if !m.Enabled {
		return nil, nil
	}
	exporter := strings.ToLower(strings.TrimSpace(m.Exporter))
	endpoint := strings.TrimSpace(m.Endpoint)
	switch {
	case exporter == "":
		return nil, errors.New("metrics.exporter is required")
	case endpoint == "":
		return nil, errors.New("metrics.endpoint is required")
	}

	labels := externalLabels(cfg)
	switch exporter {
	case exporterRemoteWrite:
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return nil, fmt.Errorf("invalid metrics.endpoint: %w", err)
		}
		return NewRemoteWritePusher(endpoint, m.AuthToken, labels), nil
	case exporterPushgateway:
		return NewPushgatewayPusher(endpoint, cfg.AppName, labels), nil
	}
	return nil, fmt.Errorf("unknown metrics.exporter %q", exporter)
}

// externalLabels tell deployments apart when several push to one collector.
func externalLabels(cfg config.Config) map[string]string {
	out := map[string]string{}
	if env := strings.TrimSpace(cfg.Environment); env != "" {
		out["environment"] = env
	}
	if instance := strings.TrimSpace(cfg.InstanceID); instance != "" {
		out["instance"] = instance
	}
	return out
}

// RemoteWritePusher speaks the Prometheus remote_write protocol: snappy
// compressed protobuf over HTTP POST.
type RemoteWritePusher struct {
	endpoint string
	token    string
	labels   map[string]string
	client   *http.Client
}

func NewRemoteWritePusher(endpoint, token string, labels map[string]string) *RemoteWritePusher {
	return &RemoteWritePusher{
		endpoint: endpoint,
		token:    strings.TrimSpace(token),
		labels:   labels,
		client:   obstracing.WrapHTTPClient(&http.Client{Timeout: pushTimeout}),
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	series := toTimeSeries(families, p.labels, time.Now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	payload, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(snappy.Encode(nil, payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("remote write returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// PushgatewayPusher replaces the job's group on a Pushgateway each push.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{endpoint: endpoint, job: strings.TrimSpace(job), grouping: grouping}
}

func (p *PushgatewayPusher) Push(ctx context.Context, registry *prometheus.Registry) error {
	if p == nil || registry == nil {
		return nil
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}
	pusher := push.New(p.endpoint, p.job).Gatherer(registry)
	for _, key := range sortedKeys(p.grouping) {
		if value := strings.TrimSpace(p.grouping[key]); value != "" {
			pusher = pusher.Grouping(key, value)
		}
	}
	return pusher.PushContext(ctx)
}

// toTimeSeries flattens counters and gauges into remote_write series. Labels
// already set on a metric win over the external ones.
func toTimeSeries(families []*dto.MetricFamily, external map[string]string, ts int64) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value, ok := sampleValue(family.GetType(), metric)
			if !ok {
				continue
			}
			labels := make(map[string]string, len(external)+len(metric.GetLabel())+1)
			for k, v := range external {
				labels[k] = v
			}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			labels["__name__"] = family.GetName()

			series := prompb.TimeSeries{Samples: []prompb.Sample{{Value: value, Timestamp: ts}}}
			for _, name := range sortedKeys(labels) {
				series.Labels = append(series.Labels, prompb.Label{Name: name, Value: labels[name]})
			}
			out = append(out, series)
		}
	}
	return out
}

func sampleValue(kind dto.MetricType, metric *dto.Metric) (float64, bool) {
	switch {
	case kind == dto.MetricType_GAUGE && metric.GetGauge() != nil:
		return metric.GetGauge().GetValue(), true
	case kind == dto.MetricType_COUNTER && metric.GetCounter() != nil:
		return metric.GetCounter().GetValue(), true
	}
	return 0, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
