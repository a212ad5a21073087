package main

import (
	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/policy"
)

// laneEmission is one pending shipment for a lane: a ticket plus the
// staged words it describes.
type laneEmission struct {
	ticket core.Ticket
	words  []core.Word
}

// Feeder turns workload frames into per-lane ticket streams. Every active
// lane gets a frame-start carrying its declared totals, one ticket per
// group with the staged hit words, and a frame-end, all stamped with the
// frame's timestamp. The next workload frame loads only after every lane
// shipped its script, so lanes stay at most one frame apart at the source.
type Feeder struct {
	lanes    []*Lane
	workload Workload
	pol      policy.Manager
	period   uint64

	pending   [][]laneEmission
	active    []bool
	hitSeq    []uint64
	serial    uint64
	exhausted bool
	framesFed uint64
}

// NewFeeder creates a feeder driving the lanes from the workload. A nil
// policy manager means all lanes are always active.
func NewFeeder(lanes []*Lane, workload Workload, pol policy.Manager, framePeriod uint64) *Feeder {
	if pol == nil {
		pol = policy.NewDefaultManager()
	}
	f := &Feeder{
		lanes:    lanes,
		workload: workload,
		pol:      pol,
		period:   framePeriod,
		pending:  make([][]laneEmission, len(lanes)),
		active:   make([]bool, len(lanes)),
		hitSeq:   make([]uint64, len(lanes)),
	}
	for i := range f.active {
		f.active[i] = true
	}
	return f
}

// Tick ships at most one pending emission per lane. A lane going mute
// abandons the rest of its current frame script; the allocator resolves
// the half-delivered frame through its incomplete-frame handling.
func (f *Feeder) Tick(step uint64) {
	if f == nil || f.workload == nil {
		return
	}
	for i := range f.lanes {
		act := f.pol.LaneActive(i, step)
		if f.active[i] && !act {
			f.pending[i] = f.pending[i][:0]
		}
		f.active[i] = act
	}
	if !f.exhausted && f.allShipped() {
		f.loadNextFrame()
	}
	for i, lane := range f.lanes {
		if !f.active[i] || len(f.pending[i]) == 0 {
			continue
		}
		em := f.pending[i][0]
		if lane.TryShip(em.ticket, em.words, step) {
			f.pending[i] = f.pending[i][1:]
		}
	}
}

func (f *Feeder) allShipped() bool {
	for i := range f.pending {
		if len(f.pending[i]) > 0 {
			return false
		}
	}
	return true
}

func (f *Feeder) loadNextFrame() {
	frames, ok := f.workload.NextFrame(f.serial)
	if !ok {
		f.exhausted = true
		return
	}
	ts := f.serial * f.period
	for i := range f.lanes {
		if !f.active[i] {
			continue
		}
		var lf LaneFrame
		if i < len(frames) {
			lf = frames[i]
		}
		declaredHits := 0
		for _, hits := range lf.Groups {
			declaredHits += hits
		}
		f.pending[i] = append(f.pending[i], laneEmission{ticket: core.Ticket{
			Lane:           i,
			Timestamp:      ts,
			FrameStart:     true,
			DeclaredGroups: len(lf.Groups),
			DeclaredHits:   declaredHits,
		}})
		for _, hits := range lf.Groups {
			words := make([]core.Word, hits)
			for j := range words {
				f.hitSeq[i]++
				words[j] = core.HitWord(uint64(i+1)<<40 | f.hitSeq[i])
			}
			f.pending[i] = append(f.pending[i], laneEmission{
				ticket: core.Ticket{Lane: i, Timestamp: ts, Length: hits},
				words:  words,
			})
		}
		f.pending[i] = append(f.pending[i], laneEmission{ticket: core.Ticket{
			Lane:      i,
			Timestamp: ts,
			FrameEnd:  true,
		}})
	}
	f.serial++
	f.framesFed++
}

// FramesFed returns the count of workload frames loaded so far.
func (f *Feeder) FramesFed() uint64 {
	if f == nil {
		return 0
	}
	return f.framesFed
}

// Exhausted reports whether the workload ran out of frames.
func (f *Feeder) Exhausted() bool {
	if f == nil {
		return false
	}
	return f.exhausted
}

// PendingEmissions returns the count of emissions not yet shipped, across
// all lanes.
func (f *Feeder) PendingEmissions() int {
	if f == nil {
		return 0
	}
	n := 0
	for i := range f.pending {
		n += len(f.pending[i])
	}
	return n
}

// Reset rewinds the feeder and its workload to frame zero.
func (f *Feeder) Reset() {
	if f == nil {
		return
	}
	for i := range f.pending {
		f.pending[i] = f.pending[i][:0]
		f.active[i] = true
		f.hitSeq[i] = 0
	}
	f.serial = 0
	f.exhausted = false
	f.framesFed = 0
	if f.workload != nil {
		f.workload.Reset()
	}
}
