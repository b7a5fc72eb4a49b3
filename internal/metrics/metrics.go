// Package metrics exposes reframer, ingest and sink counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one reframing session. It
// implements reframe.StatsRecorder and ingest.Stats.
type Metrics struct {
	registry *prometheus.Registry

	emittedPackets *prometheus.CounterVec
	emittedBytes   *prometheus.CounterVec
	partialPackets *prometheus.CounterVec
	droppedPackets *prometheus.CounterVec
	ranges         prometheus.Counter
	currentRange   prometheus.Gauge
	sizeEstimate   prometheus.Gauge
	sizeDecisions  *prometheus.CounterVec
	ingestPackets  *prometheus.CounterVec
	ingestBytes    *prometheus.CounterVec
	ingestSync     *prometheus.CounterVec
	filesWritten   prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		emittedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_emitted_packets_total",
			Help: "Packets forwarded downstream",
		}, []string{"stream"}),
		emittedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_emitted_bytes_total",
			Help: "Payload bytes forwarded downstream",
		}, []string{"stream"}),
		partialPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_partial_packets_total",
			Help: "Packets trimmed at a range boundary",
		}, []string{"stream"}),
		droppedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_dropped_packets_total",
			Help: "Packets discarded, by reason",
		}, []string{"stream", "reason"}),
		ranges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reframer_ranges_total",
			Help: "Ranges or split chunks started",
		}),
		currentRange: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reframer_current_range",
			Help: "File number of the range being produced",
		}),
		sizeEstimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reframer_size_estimate_bytes",
			Help: "Estimated size of the last size-split chunk",
		}),
		sizeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_size_split_decisions_total",
			Help: "Size splits, by which access point was kept",
		}, []string{"cut"}),
		ingestPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_ingest_packets_total",
			Help: "Packets demultiplexed from the transport stream",
		}, []string{"stream"}),
		ingestBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_ingest_bytes_total",
			Help: "Payload bytes demultiplexed from the transport stream",
		}, []string{"stream"}),
		ingestSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reframer_ingest_sync_packets_total",
			Help: "Demultiplexed packets that are stream access points",
		}, []string{"stream"}),
		filesWritten: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reframer_files_written",
			Help: "Object files opened by the sink",
		}),
	}

	m.registry.MustRegister(
		m.emittedPackets,
		m.emittedBytes,
		m.partialPackets,
		m.droppedPackets,
		m.ranges,
		m.currentRange,
		m.sizeEstimate,
		m.sizeDecisions,
		m.ingestPackets,
		m.ingestBytes,
		m.ingestSync,
		m.filesWritten,
	)
	return m
}

// RecordEmitted counts one forwarded packet.
func (m *Metrics) RecordEmitted(stream string, bytes int, partial bool) {
	m.emittedPackets.WithLabelValues(stream).Inc()
	m.emittedBytes.WithLabelValues(stream).Add(float64(bytes))
	if partial {
		m.partialPackets.WithLabelValues(stream).Inc()
	}
}

func (m *Metrics) RecordDropped(stream, reason string) {
	m.droppedPackets.WithLabelValues(stream, reason).Inc()
}

// RecordRange counts the start of range index.
func (m *Metrics) RecordRange(index uint32, _ string) {
	m.ranges.Inc()
	m.currentRange.Set(float64(index))
}

func (m *Metrics) RecordSizeEstimate(bytes uint64, usedPrevious bool) {
	m.sizeEstimate.Set(float64(bytes))
	cut := "current"
	if usedPrevious {
		cut = "previous"
	}
	m.sizeDecisions.WithLabelValues(cut).Inc()
}

// RecordIngested counts one demultiplexed packet.
func (m *Metrics) RecordIngested(stream string, bytes int, sync bool) {
	m.ingestPackets.WithLabelValues(stream).Inc()
	m.ingestBytes.WithLabelValues(stream).Add(float64(bytes))
	if sync {
		m.ingestSync.WithLabelValues(stream).Inc()
	}
}

// SetFilesWritten reports the number of files the sink has opened.
func (m *Metrics) SetFilesWritten(n int) {
	m.filesWritten.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
