// Package metrics defines the Prometheus collectors exported by the sender.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Redispatch reasons.
const (
	ReasonScan     = "scan"
	ReasonReply    = "reply"
	ReasonFlush    = "flush"
	ReasonRecovery = "recovery"
)

// Reply outcomes.
const (
	ReplySuccess   = "success"
	ReplyFailure   = "failure"
	ReplyUnmatched = "unmatched"
	ReplyMalformed = "malformed"
)

// Sender tracks delivery state. A nil *Sender is valid and records nothing.
type Sender struct {
	pending     prometheus.Gauge
	dispatch    *prometheus.CounterVec
	redispatch  *prometheus.CounterVec
	replies     *prometheus.CounterVec
	overflow    prometheus.Counter
	recovered   prometheus.Counter
	reconfigure prometheus.Counter
	faults      prometheus.Counter
	live        prometheus.Gauge
}

// NewSender constructs the sender metrics and registers them with reg.
// A nil registerer leaves the collectors unregistered.
func NewSender(reg prometheus.Registerer) *Sender {
	m := &Sender{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "sender",
			Name:      "pending_records",
			Help:      "Records sent but not yet acknowledged.",
		}),
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "sender",
			Name:      "dispatch_total",
			Help:      "Dispatch attempts by result.",
		}, []string{"result"}),
		redispatch: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "sender",
			Name:      "redispatch_total",
			Help:      "Retransmissions by reason.",
		}, []string{"reason"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "sender",
			Name:      "replies_total",
			Help:      "Collector replies by outcome.",
		}, []string{"status"}),
		overflow: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "sender",
			Name:      "overflow_total",
			Help:      "Times the pending cache was written to the disaster file.",
		}),
		recovered: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "sender",
			Name:      "recovered_records_total",
			Help:      "Records read back from the disaster file.",
		}),
		reconfigure: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "connection",
			Name:      "reconfigure_total",
			Help:      "Endpoint set changes applied to the connection group.",
		}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "connection",
			Name:      "faults_total",
			Help:      "Connection failures reported by the transport.",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{ //nolint:exhaustruct
			Namespace: "auditship",
			Subsystem: "connection",
			Name:      "live",
			Help:      "Collector connections currently established.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.pending, m.dispatch, m.redispatch, m.replies,
			m.overflow, m.recovered, m.reconfigure, m.faults, m.live)
	}
	return m
}

// SetPending records the pending cache size.
func (m *Sender) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// Dispatched records the outcome of one dispatch.
func (m *Sender) Dispatched(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.dispatch.WithLabelValues(result).Inc()
}

// Redispatched records one retransmission.
func (m *Sender) Redispatched(reason string) {
	if m == nil {
		return
	}
	m.redispatch.WithLabelValues(reason).Inc()
}

// Reply records one inbound reply outcome.
func (m *Sender) Reply(status string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(status).Inc()
}

// Overflowed records a cache overflow to disk.
func (m *Sender) Overflowed() {
	if m == nil {
		return
	}
	m.overflow.Inc()
}

// Recovered records n records read back from disk.
func (m *Sender) Recovered(n int) {
	if m == nil {
		return
	}
	m.recovered.Add(float64(n))
}

// Reconfigured records an applied endpoint change.
func (m *Sender) Reconfigured() {
	if m == nil {
		return
	}
	m.reconfigure.Inc()
}

// Fault records a connection failure.
func (m *Sender) Fault() {
	if m == nil {
		return
	}
	m.faults.Inc()
}

// SetLive records the number of established connections.
func (m *Sender) SetLive(n int) {
	if m == nil {
		return
	}
	m.live.Set(float64(n))
}
