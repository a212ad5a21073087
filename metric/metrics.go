package metric

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the pipeline-level metrics exported by the merger.
type Metrics struct {
	// Write port
	PortGrants   *prometheus.CounterVec
	WordsWritten *prometheus.CounterVec

	// Frame lifecycle
	FramesOpened  prometheus.Counter
	FramesSealed  prometheus.Counter
	FramesDropped *prometheus.CounterVec
	FrameWords    prometheus.Histogram

	// Segment management
	Spills  prometheus.Counter
	Flushes prometheus.Counter
	Warps   prometheus.Counter

	// Arbiter
	QuantumLevel *prometheus.GaugeVec
	Bypasses     prometheus.Counter

	// Egress
	EgressWords    prometheus.Counter
	EgressStalls   prometheus.Counter
	PresenterState prometheus.Gauge

	// Queues
	QueueDepth *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all pipeline metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		PortGrants: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "port",
				Name:      "grants_total",
				Help:      "Write port grants by requester",
			},
			[]string{"requester"},
		),

		WordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "arena",
				Name:      "words_written_total",
				Help:      "Words written into the arena by requester",
			},
			[]string{"requester"},
		),

		FramesOpened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "frames",
				Name:      "opened_total",
				Help:      "Merged frames opened",
			},
		),

		FramesSealed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "frames",
				Name:      "sealed_total",
				Help:      "Merged frames sealed with metadata published",
			},
		),

		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "frames",
				Name:      "dropped_total",
				Help:      "Merged frames invalidated, by reason",
			},
			[]string{"reason"},
		),

		FrameWords: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "framering",
				Subsystem: "frames",
				Name:      "words",
				Help:      "Total words per sealed frame",
				Buckets:   prometheus.ExponentialBuckets(8, 2, 10),
			},
		),

		Spills: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "segments",
				Name:      "spills_total",
				Help:      "Frames spilled into an expansion segment",
			},
		),

		Flushes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "segments",
				Name:      "flushes_total",
				Help:      "Segments flushed with unread frames discarded",
			},
		),

		Warps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "segments",
				Name:      "warps_total",
				Help:      "Presenter jumps to a different segment",
			},
		),

		QuantumLevel: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "framering",
				Subsystem: "arbiter",
				Name:      "quantum",
				Help:      "Remaining arbiter quantum per lane",
			},
			[]string{"lane"},
		),

		Bypasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "arbiter",
				Name:      "bypasses_total",
				Help:      "Grants issued while every requester was out of quantum",
			},
		),

		EgressWords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "egress",
				Name:      "words_total",
				Help:      "Words delivered downstream",
			},
		),

		EgressStalls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "framering",
				Subsystem: "egress",
				Name:      "stalls_total",
				Help:      "Steps the egress refused a ready word",
			},
		),

		PresenterState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "framering",
				Subsystem: "presenter",
				Name:      "state",
				Help:      "Presenter state (0=idle, 1=wait, 2=verify, 3=presenting, 4=restart)",
			},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "framering",
				Subsystem: "queues",
				Name:      "depth",
				Help:      "Occupancy of internal queues",
			},
			[]string{"queue"},
		),
	}
}

// RecordGrant increments the grant counter for a requester.
func (m *Metrics) RecordGrant(requester string) {
	m.PortGrants.WithLabelValues(requester).Inc()
}

// RecordWrite increments the written-words counter for a requester.
func (m *Metrics) RecordWrite(requester string) {
	m.WordsWritten.WithLabelValues(requester).Inc()
}

// RecordFrameOpened increments the opened-frames counter.
func (m *Metrics) RecordFrameOpened() {
	m.FramesOpened.Inc()
}

// RecordFrameSealed increments the sealed-frames counter and observes the
// frame size.
func (m *Metrics) RecordFrameSealed(words int) {
	m.FramesSealed.Inc()
	m.FrameWords.Observe(float64(words))
}

// RecordFrameDropped increments the dropped-frames counter for a reason.
func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// RecordSpill increments the spill counter.
func (m *Metrics) RecordSpill() {
	m.Spills.Inc()
}

// RecordFlush increments the flush counter.
func (m *Metrics) RecordFlush() {
	m.Flushes.Inc()
}

// RecordWarp increments the warp counter.
func (m *Metrics) RecordWarp() {
	m.Warps.Inc()
}

// SetQuantum updates the remaining quantum gauge for a lane.
func (m *Metrics) SetQuantum(lane int, level int) {
	m.QuantumLevel.WithLabelValues(strconv.Itoa(lane)).Set(float64(level))
}

// RecordBypass increments the arbiter bypass counter.
func (m *Metrics) RecordBypass() {
	m.Bypasses.Inc()
}

// RecordEgressWord increments the delivered-words counter.
func (m *Metrics) RecordEgressWord() {
	m.EgressWords.Inc()
}

// RecordEgressStall increments the egress stall counter.
func (m *Metrics) RecordEgressStall() {
	m.EgressStalls.Inc()
}

// SetPresenterState updates the presenter state gauge.
func (m *Metrics) SetPresenterState(state int) {
	m.PresenterState.Set(float64(state))
}

// SetQueueDepth updates the depth gauge for a named queue.
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}
