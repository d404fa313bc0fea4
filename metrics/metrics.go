// Package metrics exposes the network engine's Prometheus instruments.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "l2gs"

// Metrics holds the network engine counters and gauges.
type Metrics struct {
	sessionsActive     prometheus.Gauge
	sessionsAccepted   prometheus.Counter
	sessionsRejected   prometheus.Counter
	framesIn           prometheus.Counter
	framesOut          prometheus.Counter
	unknownOpcodes     prometheus.Counter
	protocolViolations prometheus.Counter
	outboundOverflows  prometheus.Counter
	framingErrors      prometheus.Counter
}

// New registers the instruments with reg. Passing nil uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: help})
	}

	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Number of open client sessions",
		}),
		sessionsAccepted:   counter("sessions_accepted_total", "Client connections accepted"),
		sessionsRejected:   counter("sessions_rejected_total", "Client connections refused because the session limit was reached"),
		framesIn:           counter("frames_in_total", "Complete frames read from clients"),
		framesOut:          counter("frames_out_total", "Frames written to clients"),
		unknownOpcodes:     counter("unknown_opcodes_total", "Inbound frames dropped for an unregistered opcode"),
		protocolViolations: counter("protocol_violations_total", "Inbound packets not legal in the session state"),
		outboundOverflows:  counter("outbound_overflows_total", "Sessions closed because their outbound queue was full"),
		framingErrors:      counter("framing_errors_total", "Sessions closed on an illegal frame length"),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}

	m.sessionsAccepted.Inc()
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}

	m.sessionsActive.Dec()
}

func (m *Metrics) SessionRejected() {
	if m == nil {
		return
	}

	m.sessionsRejected.Inc()
}

func (m *Metrics) FrameIn() {
	if m == nil {
		return
	}

	m.framesIn.Inc()
}

func (m *Metrics) FrameOut() {
	if m == nil {
		return
	}

	m.framesOut.Inc()
}

func (m *Metrics) UnknownOpcode() {
	if m == nil {
		return
	}

	m.unknownOpcodes.Inc()
}

func (m *Metrics) ProtocolViolation() {
	if m == nil {
		return
	}

	m.protocolViolations.Inc()
}

func (m *Metrics) OutboundOverflow() {
	if m == nil {
		return
	}

	m.outboundOverflows.Inc()
}

func (m *Metrics) FramingError() {
	if m == nil {
		return
	}

	m.framingErrors.Inc()
}
