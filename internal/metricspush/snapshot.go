package metricspush

import (
	"context"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Snapshot holds point-in-time marketplace gauges. It is refreshed from the
// database before every push.
type Snapshot struct {
	registry      *prometheus.Registry
	organizations *prometheus.GaugeVec
	inquiries     *prometheus.GaugeVec
	quotations    *prometheus.GaugeVec
	connections   *prometheus.GaugeVec
	memory        prometheus.Gauge
}

func NewSnapshot(instanceID, version string) *Snapshot {
	constLabels := prometheus.Labels{"instance_id": instanceID, "version": version}
	s := &Snapshot{
		registry: prometheus.NewRegistry(),
		organizations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "freightdesk_organizations",
			Help:        "Organizations by type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		inquiries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "freightdesk_inquiries",
			Help:        "Inquiries by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		quotations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "freightdesk_quotations",
			Help:        "Quotations by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "freightdesk_connections",
			Help:        "Shipper and forwarder connections by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "freightdesk_process_memory_bytes",
			Help:        "Memory obtained from the OS by the process.",
			ConstLabels: constLabels,
		}),
	}
	s.registry.MustRegister(s.organizations, s.inquiries, s.quotations, s.connections, s.memory)
	return s
}

func (s *Snapshot) Registry() *prometheus.Registry {
	return s.registry
}

type statusCount struct {
	Label string `gorm:"column:label"`
	Total int64  `gorm:"column:total"`
}

// Refresh reloads every gauge. A failing table leaves its previous values.
func (s *Snapshot) Refresh(ctx context.Context, db *gorm.DB) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.memory.Set(float64(m.Sys))

	targets := []struct {
		table  string
		column string
		gauge  *prometheus.GaugeVec
	}{
		{"organizations", "type", s.organizations},
		{"inquiries", "status", s.inquiries},
		{"quotations", "status", s.quotations},
		{"organization_connections", "status", s.connections},
	}
	for _, target := range targets {
		var rows []statusCount
		if err := db.WithContext(ctx).Table(target.table).
			Select(target.column + " AS label, COUNT(*) AS total").
			Group(target.column).
			Scan(&rows).Error; err != nil {
			return err
		}
		target.gauge.Reset()
		for _, row := range rows {
			target.gauge.WithLabelValues(row.Label).Set(float64(row.Total))
		}
	}
	return nil
}
