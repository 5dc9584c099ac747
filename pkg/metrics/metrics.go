// Package metrics exposes Prometheus instrumentation for DR streams and
// block sinks.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Push reasons
const (
	ReasonFull     = "full"
	ReasonFlush    = "flush"
	ReasonPeriodic = "periodic"
	ReasonEnd      = "end_of_stream"
)

// StreamMetrics holds the per-partition stream instrumentation. A nil
// *StreamMetrics is valid and records nothing.
type StreamMetrics struct {
	recordsTotal      *prometheus.CounterVec
	bytesTotal        *prometheus.CounterVec
	blocksPushedTotal *prometheus.CounterVec
	pushErrorsTotal   *prometheus.CounterVec
	rollbacksTotal    *prometheus.CounterVec
	rolledBackBytes   *prometheus.CounterVec
	committedSpHandle *prometheus.GaugeVec
	openTransactions  *prometheus.GaugeVec
	blockBytes        *prometheus.HistogramVec
}

// NewStreamMetrics creates the stream metrics and registers them with reg
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	f := promauto.With(reg)
	return &StreamMetrics{
		recordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_records_total",
				Help: "Records written to the DR stream by type",
			},
			[]string{"partition", "type"},
		),
		bytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_bytes_total",
				Help: "Bytes written to the DR stream, rolled back bytes included",
			},
			[]string{"partition"},
		),
		blocksPushedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_blocks_pushed_total",
				Help: "Sealed stream blocks handed to the sink",
			},
			[]string{"partition", "reason"},
		),
		pushErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_push_errors_total",
				Help: "Block pushes the sink rejected",
			},
			[]string{"partition"},
		),
		rollbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_rollbacks_total",
				Help: "Stream rollbacks",
			},
			[]string{"partition"},
		),
		rolledBackBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_rolled_back_bytes_total",
				Help: "Bytes discarded by rollbacks",
			},
			[]string{"partition"},
		),
		committedSpHandle: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "drlog_committed_sp_handle",
				Help: "Last committed spHandle written to the stream",
			},
			[]string{"partition"},
		),
		openTransactions: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "drlog_open_transactions",
				Help: "1 while a transaction is open on the stream",
			},
			[]string{"partition"},
		),
		blockBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drlog_pushed_block_bytes",
				Help:    "Size of pushed stream blocks in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 10),
			},
			[]string{"partition"},
		),
	}
}

func label(partition int32) string {
	return strconv.FormatInt(int64(partition), 10)
}

// RecordWritten counts one record of the given type and size
func (m *StreamMetrics) RecordWritten(partition int32, recordType string, size int) {
	if m == nil {
		return
	}
	p := label(partition)
	m.recordsTotal.WithLabelValues(p, recordType).Inc()
	m.bytesTotal.WithLabelValues(p).Add(float64(size))
}

// TransactionOpened flags the partition as inside a transaction
func (m *StreamMetrics) TransactionOpened(partition int32) {
	if m == nil {
		return
	}
	m.openTransactions.WithLabelValues(label(partition)).Set(1)
}

// TransactionCommitted records the new watermark
func (m *StreamMetrics) TransactionCommitted(partition int32, spHandle int64) {
	if m == nil {
		return
	}
	p := label(partition)
	m.openTransactions.WithLabelValues(p).Set(0)
	m.committedSpHandle.WithLabelValues(p).Set(float64(spHandle))
}

// RolledBack records a rollback discarding n bytes
func (m *StreamMetrics) RolledBack(partition int32, n int64, closedTxn bool) {
	if m == nil {
		return
	}
	p := label(partition)
	m.rollbacksTotal.WithLabelValues(p).Inc()
	m.rolledBackBytes.WithLabelValues(p).Add(float64(n))
	if closedTxn {
		m.openTransactions.WithLabelValues(p).Set(0)
	}
}

// BlockPushed records a block hand-off
func (m *StreamMetrics) BlockPushed(partition int32, reason string, size int, err error) {
	if m == nil {
		return
	}
	p := label(partition)
	m.blocksPushedTotal.WithLabelValues(p, reason).Inc()
	m.blockBytes.WithLabelValues(p).Observe(float64(size))
	if err != nil {
		m.pushErrorsTotal.WithLabelValues(p).Inc()
	}
}

// SinkMetrics instruments a block sink. A nil *SinkMetrics records nothing.
type SinkMetrics struct {
	writesTotal   *prometheus.CounterVec
	bytesTotal    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
}

// NewSinkMetrics creates the sink metrics and registers them with reg
func NewSinkMetrics(reg prometheus.Registerer) *SinkMetrics {
	f := promauto.With(reg)
	return &SinkMetrics{
		writesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_sink_writes_total",
				Help: "Blocks written by the sink",
			},
			[]string{"sink"},
		),
		bytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_sink_bytes_total",
				Help: "Bytes written by the sink",
			},
			[]string{"sink"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drlog_sink_errors_total",
				Help: "Failed sink writes",
			},
			[]string{"sink"},
		),
		writeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drlog_sink_write_duration_seconds",
				Help:    "Sink write latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
	}
}

// Observe records one sink write
func (m *SinkMetrics) Observe(sink string, size int, seconds float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.errorsTotal.WithLabelValues(sink).Inc()
		return
	}
	m.writesTotal.WithLabelValues(sink).Inc()
	m.bytesTotal.WithLabelValues(sink).Add(float64(size))
	m.writeDuration.WithLabelValues(sink).Observe(seconds)
}
