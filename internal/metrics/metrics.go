// Package metrics holds the prometheus collectors of a voice session.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voicepeer"

type Metrics struct {
	envelopesIn         *prometheus.CounterVec
	envelopesOut        *prometheus.CounterVec
	envelopesDropped    prometheus.Counter
	negotiationFailures *prometheus.CounterVec
	iceCandidates       *prometheus.CounterVec
	sessionState        *prometheus.CounterVec
	activePeers         prometheus.Gauge
	activePipelines     prometheus.Gauge
	debugSources        *prometheus.GaugeVec
	captureFrames       prometheus.Counter
	remoteFrames        prometheus.Counter
}

// New registers every collector in reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		envelopesIn: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "envelopes_received_total",
			Help:      "Signaling envelopes received by type",
		}, []string{"type"}),
		envelopesOut: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "envelopes_sent_total",
			Help:      "Signaling envelopes sent by type",
		}, []string{"type"}),
		envelopesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "envelopes_dropped_total",
			Help:      "Inbound frames that did not decode as an envelope",
		}),
		negotiationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "negotiation_failures_total",
			Help:      "Failed negotiation steps by step",
		}, []string{"step"}),
		iceCandidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "ice_candidates_total",
			Help:      "Remote ICE candidates by outcome",
		}, []string{"result"}),
		sessionState: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state_transitions_total",
			Help:      "Session state machine transitions by destination state",
		}, []string{"state"}),
		activePeers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "active",
			Help:      "Peer records currently held",
		}),
		activePipelines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "spatial",
			Name:      "pipelines_active",
			Help:      "Audio pipelines currently wired",
		}),
		debugSources: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "debug",
			Name:      "sources_active",
			Help:      "Debug sources currently playing by kind",
		}, []string{"kind"}),
		captureFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "frames_total",
			Help:      "Encoded capture frames written to the local track",
		}),
		remoteFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "remote_frames_total",
			Help:      "Decoded remote audio frames",
		}),
	}
}

func (m *Metrics) EnvelopeIn(typ string) {
	if m != nil {
		m.envelopesIn.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) EnvelopeOut(typ string) {
	if m != nil {
		m.envelopesOut.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) EnvelopeDropped() {
	if m != nil {
		m.envelopesDropped.Inc()
	}
}

func (m *Metrics) NegotiationFailed(step string) {
	if m != nil {
		m.negotiationFailures.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) ICECandidate(ok bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !ok {
		result = "rejected"
	}
	m.iceCandidates.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionState(state string) {
	if m != nil {
		m.sessionState.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) SetPeers(n int) {
	if m != nil {
		m.activePeers.Set(float64(n))
	}
}

func (m *Metrics) SetPipelines(n int) {
	if m != nil {
		m.activePipelines.Set(float64(n))
	}
}

func (m *Metrics) SetDebugSource(kind string, active bool) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.debugSources.WithLabelValues(kind).Set(v)
}

func (m *Metrics) CaptureFrame() {
	if m != nil {
		m.captureFrames.Inc()
	}
}

func (m *Metrics) RemoteFrame() {
	if m != nil {
		m.remoteFrames.Inc()
	}
}
