// Package dsvmetrics wires the dsv package's MetricsReporter interface to
// Prometheus.
package dsvmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/phantommesh/dsv/internal/dsv"
)

var _ dsv.MetricsReporter = (*Collector)(nil)

const (
	namespace = "dsv"
	subsystem = "vault"
)

// Label name for the fragment rejection counter.
const labelReason = "reason"

// Collector holds all DSV Prometheus metrics and implements
// dsv.MetricsReporter.
type Collector struct {
	// Sessions tracks the number of currently active scattering sessions.
	Sessions prometheus.Gauge

	// QueueLength tracks the current Delay Queue depth.
	QueueLength prometheus.Gauge

	// ReassemblyBins tracks the current reassembly bin count.
	ReassemblyBins prometheus.Gauge

	// SessionsCreatedTotal counts sessions created by the Session Table.
	SessionsCreatedTotal prometheus.Counter

	// SessionsExpiredTotal counts sessions removed for exceeding their
	// maximum age, by an eviction sweep or by replacement on access.
	SessionsExpiredTotal prometheus.Counter

	// PacketsScatteredTotal counts successful Scatter calls.
	PacketsScatteredTotal prometheus.Counter

	// FragmentsQueuedTotal counts fragments admitted to the Delay Queue.
	FragmentsQueuedTotal prometheus.Counter

	// FragmentsDroppedTotal counts fragments dropped by Delay Queue
	// backpressure.
	FragmentsDroppedTotal prometheus.Counter

	// FragmentsReleasedTotal counts fragments released by DrainReady.
	FragmentsReleasedTotal prometheus.Counter

	// FragmentsAcceptedTotal counts fragments admitted into a reassembly
	// bin.
	FragmentsAcceptedTotal prometheus.Counter

	// FragmentsRejectedTotal counts fragments dropped during Accept,
	// labeled by rejection reason (skin, aead, mismatch).
	FragmentsRejectedTotal *prometheus.CounterVec

	// PacketsReassembledTotal counts packets delivered by
	// CollectCompleted.
	PacketsReassembledTotal prometheus.Counter

	// BinsExpiredTotal counts reassembly bins evicted by TTL.
	BinsExpiredTotal prometheus.Counter
}

// NewCollector creates a Collector with all DSV metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.QueueLength,
		c.ReassemblyBins,
		c.SessionsCreatedTotal,
		c.SessionsExpiredTotal,
		c.PacketsScatteredTotal,
		c.FragmentsQueuedTotal,
		c.FragmentsDroppedTotal,
		c.FragmentsReleasedTotal,
		c.FragmentsAcceptedTotal,
		c.FragmentsRejectedTotal,
		c.PacketsReassembledTotal,
		c.BinsExpiredTotal,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently active scattering sessions.",
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_length",
			Help:      "Current Delay Queue depth.",
		}),
		ReassemblyBins: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reassembly_bins",
			Help:      "Current number of in-flight reassembly bins.",
		}),
		SessionsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_created_total",
			Help:      "Total scattering sessions created.",
		}),
		SessionsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_expired_total",
			Help:      "Total scattering sessions evicted by age.",
		}),
		PacketsScatteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_scattered_total",
			Help:      "Total packets successfully scattered.",
		}),
		FragmentsQueuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fragments_queued_total",
			Help:      "Total fragments admitted to the Delay Queue.",
		}),
		FragmentsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fragments_dropped_total",
			Help:      "Total fragments dropped by Delay Queue backpressure.",
		}),
		FragmentsReleasedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fragments_released_total",
			Help:      "Total fragments released by DrainReady.",
		}),
		FragmentsAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fragments_accepted_total",
			Help:      "Total fragments admitted into a reassembly bin.",
		}),
		FragmentsRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fragments_rejected_total",
			Help:      "Total fragments dropped during Accept, by reason.",
		}, []string{labelReason}),
		PacketsReassembledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_reassembled_total",
			Help:      "Total packets delivered by CollectCompleted.",
		}),
		BinsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bins_expired_total",
			Help:      "Total reassembly bins evicted by TTL.",
		}),
	}
}

// SessionCreated implements dsv.MetricsReporter.
func (c *Collector) SessionCreated() { c.SessionsCreatedTotal.Inc() }

// SessionExpired implements dsv.MetricsReporter.
func (c *Collector) SessionExpired() { c.SessionsExpiredTotal.Inc() }

// PacketScattered implements dsv.MetricsReporter.
func (c *Collector) PacketScattered() { c.PacketsScatteredTotal.Inc() }

// FragmentQueued implements dsv.MetricsReporter.
func (c *Collector) FragmentQueued() { c.FragmentsQueuedTotal.Inc() }

// FragmentDropped implements dsv.MetricsReporter.
func (c *Collector) FragmentDropped() { c.FragmentsDroppedTotal.Inc() }

// FragmentReleased implements dsv.MetricsReporter.
func (c *Collector) FragmentReleased() { c.FragmentsReleasedTotal.Inc() }

// FragmentAccepted implements dsv.MetricsReporter.
func (c *Collector) FragmentAccepted() { c.FragmentsAcceptedTotal.Inc() }

// FragmentRejected implements dsv.MetricsReporter.
func (c *Collector) FragmentRejected(reason string) {
	c.FragmentsRejectedTotal.WithLabelValues(reason).Inc()
}

// PacketReassembled implements dsv.MetricsReporter.
func (c *Collector) PacketReassembled() { c.PacketsReassembledTotal.Inc() }

// BinExpired implements dsv.MetricsReporter.
func (c *Collector) BinExpired() { c.BinsExpiredTotal.Inc() }

// SetGauges implements dsv.MetricsReporter.
func (c *Collector) SetGauges(sessions, queueLen, bins int) {
	c.Sessions.Set(float64(sessions))
	c.QueueLength.Set(float64(queueLen))
	c.ReassemblyBins.Set(float64(bins))
}
