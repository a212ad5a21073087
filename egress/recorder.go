package egress

import (
	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/policy"
)

// Recorder is the terminal sink: it gates delivery on the egress policy and
// feeds accepted words into the collector.
type Recorder struct {
	policy  policy.Manager
	collect *Collector
}

// NewRecorder creates a recorder. A nil policy manager means always ready.
func NewRecorder(pm policy.Manager, collect *Collector) *Recorder {
	return &Recorder{
		policy:  pm,
		collect: collect,
	}
}

// Ready consults the egress policy for this step.
func (r *Recorder) Ready(step uint64) bool {
	if r == nil {
		return false
	}
	if r.policy == nil {
		return true
	}
	return r.policy.EgressReady(step)
}

// Accept forwards a delivered word into frame reassembly.
func (r *Recorder) Accept(step uint64, word core.Word, sof, eof bool) {
	if r == nil || r.collect == nil {
		return
	}
	r.collect.Feed(step, word, sof, eof)
}

// Collector returns the recorder's collector.
func (r *Recorder) Collector() *Collector {
	if r == nil {
		return nil
	}
	return r.collect
}
