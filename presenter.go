package main

import (
	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/egress"
	"github.com/ordaq/framering/hooks"
	"github.com/ordaq/framering/queue"
)

type presenterState int

const (
	presentIdle presenterState = iota
	presentWaitComplete
	presentVerify
	presentPresenting
	presentRestart
	presentWarping
)

func (s presenterState) String() string {
	switch s {
	case presentIdle:
		return "idle"
	case presentWaitComplete:
		return "wait_complete"
	case presentVerify:
		return "verify"
	case presentPresenting:
		return "presenting"
	case presentRestart:
		return "restart"
	case presentWarping:
		return "warping"
	default:
		return "unknown"
	}
}

// Presenter is the sole arena reader. It waits on the oldest metadata entry
// of its read segment, verifies spill links before trusting them, and
// streams one word per step into the egress register pair. While attached
// to a head frame it read-locks the segments it touches; writers route
// around locked segments and the mapper refuses to hand them out.
type Presenter struct {
	arena   *Arena
	tracker *SegmentTracker
	mapper  *SegmentMapper
	occ     *queue.Occupancy
	stream  *egress.Stream
	broker  *hooks.PluginBroker

	segments int
	segWords int

	state   presenterState
	readSeg core.SegmentID

	// Latched head entry.
	serial   uint64
	headOff  int
	length   int
	pos      int
	segOff   int
	spill    bool
	trailSeg core.SegmentID
	inTrail  bool

	presented   uint64
	wordsOut    uint64
	warps       uint64
	restarts    uint64
	brokenLinks uint64
}

// NewPresenter creates the reader side of the pipeline. The initial read
// segment is the last one, so the write rotation starting at segment 0
// never collides with an idle reader.
func NewPresenter(arena *Arena, tracker *SegmentTracker, mapper *SegmentMapper, occ *queue.Occupancy, stream *egress.Stream, broker *hooks.PluginBroker) *Presenter {
	return &Presenter{
		arena:    arena,
		tracker:  tracker,
		mapper:   mapper,
		occ:      occ,
		stream:   stream,
		broker:   broker,
		segments: arena.Segments(),
		segWords: arena.SegmentWords(),
		state:    presentIdle,
		readSeg:  core.SegmentID(arena.Segments() - 1),
	}
}

// Step advances the FSM by one state evaluation. Runs after the egress
// stream's delivery attempt and before the writer side, so the locks it
// raises here hold for the rest of the step.
func (p *Presenter) Step(step uint64) {
	if p == nil {
		return
	}
	switch p.state {
	case presentIdle:
		p.stepIdle(step)
	case presentWarping:
		p.state = presentIdle
	case presentWaitComplete:
		p.stepWaitComplete(step)
	case presentVerify:
		p.stepVerify(step)
	case presentPresenting:
		p.stepPresenting(step)
	case presentRestart:
		if p.stream.CanAccept() {
			p.state = presentPresenting
		}
	}
}

func (p *Presenter) stepIdle(step uint64) {
	if p.tracker.Pending(p.readSeg) > 0 {
		p.state = presentWaitComplete
		return
	}
	// Writer still filling this segment: frames will appear here, stay put.
	if p.readSeg == p.mapper.ActiveSegment() {
		return
	}
	if !p.mapper.Stable() {
		return
	}
	target := core.NoSegment
	for _, s := range p.mapper.Window() {
		if p.tracker.Pending(s) > 0 {
			target = s
			break
		}
	}
	if target == core.NoSegment || target == p.readSeg {
		return
	}
	// Never jump onto the segment the writer is filling; its frames finish
	// soon and landing there would lock the write cursor out.
	if target == p.mapper.ActiveSegment() {
		return
	}
	vacated := p.readSeg
	p.tracker.Flush(vacated)
	p.occ.ResetSegment(int(vacated))
	p.readSeg = target
	p.state = presentWarping
	p.warps++
	p.mapper.SyncWindow()
	p.broker.EmitWarp(&hooks.WarpContext{Step: step, From: vacated, To: target})
}

func (p *Presenter) stepWaitComplete(step uint64) {
	if p.tracker.Pending(p.readSeg) == 0 {
		p.state = presentIdle
		return
	}
	if !p.tracker.HeadComplete(p.readSeg) {
		return
	}
	entry, ok := p.tracker.HeadEntry(p.readSeg)
	if !ok {
		p.state = presentIdle
		return
	}
	p.serial = entry.Serial
	p.headOff = entry.Offset
	p.length = entry.Length
	p.pos = 0
	p.segOff = entry.Offset
	p.inTrail = false
	p.spill = entry.Offset+entry.Length > p.segWords
	if p.spill {
		trail, linked := p.tracker.Trail(p.readSeg)
		if !linked {
			p.dropHead("spill frame without a trail link")
			return
		}
		p.trailSeg = trail
		p.state = presentVerify
		return
	}
	p.state = presentPresenting
	p.emitStart(step)
}

func (p *Presenter) stepVerify(step uint64) {
	body, ok := p.tracker.Body(p.trailSeg)
	if !ok || body != p.readSeg {
		p.dropHead("stale spill back-link")
		return
	}
	p.state = presentPresenting
	p.emitStart(step)
}

func (p *Presenter) stepPresenting(step uint64) {
	if p.pos >= p.length {
		// Frame fully fetched; done once the trailer clears the registers.
		if p.stream.Empty() {
			p.completeFrame(step)
		}
		return
	}
	if !p.stream.CanAccept() {
		p.restarts++
		p.state = presentRestart
		return
	}
	seg := p.readSeg
	if p.inTrail {
		seg = p.trailSeg
	}
	w, ok := p.arena.Read(seg, p.segOff)
	if !ok {
		p.dropHead("read past the mapped span")
		return
	}
	p.stream.Push(w)
	p.occ.MarkConsumed(int(seg), p.segOff)
	p.wordsOut++
	p.pos++
	p.segOff++
	if p.segOff >= p.segWords && !p.inTrail && p.spill {
		p.inTrail = true
		p.segOff = 0
	}
}

func (p *Presenter) emitStart(step uint64) {
	p.broker.EmitPresentStart(&hooks.PresentContext{
		Step:    step,
		Serial:  p.serial,
		Segment: p.readSeg,
		Offset:  p.headOff,
		Length:  p.length,
	})
}

func (p *Presenter) completeFrame(step uint64) {
	p.tracker.Consume(p.readSeg)
	p.tracker.ClearLinks(p.readSeg)
	p.presented++
	p.broker.EmitPresentDone(&hooks.PresentContext{
		Step:    step,
		Serial:  p.serial,
		Segment: p.readSeg,
		Offset:  p.headOff,
		Length:  p.length,
	})
	p.state = presentIdle
	p.spill = false
	p.inTrail = false
}

func (p *Presenter) dropHead(why string) {
	GetLogger().Warnf("Presenter dropping frame %d in segment %d: %s", p.serial, p.readSeg, why)
	p.tracker.Consume(p.readSeg)
	p.tracker.ClearLinks(p.readSeg)
	p.brokenLinks++
	p.spill = false
	p.inTrail = false
	p.state = presentIdle
}

// IsLocked reports whether the segment is under active read. The lock
// covers the read segment from the moment the presenter attaches to a head
// entry, and the trail segment once a spill is latched.
func (p *Presenter) IsLocked(s core.SegmentID) bool {
	if p == nil {
		return false
	}
	switch p.state {
	case presentWaitComplete, presentVerify, presentPresenting, presentRestart:
	default:
		return false
	}
	if s == p.readSeg {
		return true
	}
	return p.spill && s == p.trailSeg
}

// ReadSegment returns the presenter's current read segment.
func (p *Presenter) ReadSegment() core.SegmentID {
	if p == nil {
		return core.NoSegment
	}
	return p.readSeg
}

// Presented returns the count of fully streamed frames.
func (p *Presenter) Presented() uint64 {
	if p == nil {
		return 0
	}
	return p.presented
}

// WordsOut returns the count of words pushed into the egress stream.
func (p *Presenter) WordsOut() uint64 {
	if p == nil {
		return 0
	}
	return p.wordsOut
}

// Warps returns the count of read-segment jumps.
func (p *Presenter) Warps() uint64 {
	if p == nil {
		return 0
	}
	return p.warps
}

// Restarts returns the count of backpressure stalls that interrupted a
// presentation.
func (p *Presenter) Restarts() uint64 {
	if p == nil {
		return 0
	}
	return p.restarts
}

// BrokenLinks returns the count of head frames dropped at presentation
// time over a missing or stale spill link.
func (p *Presenter) BrokenLinks() uint64 {
	if p == nil {
		return 0
	}
	return p.brokenLinks
}

// StateCode returns the FSM state as a number, for gauges.
func (p *Presenter) StateCode() int {
	if p == nil {
		return 0
	}
	return int(p.state)
}

// Info returns a snapshot of the FSM for the debug surface.
func (p *Presenter) Info() core.PresenterInfo {
	if p == nil {
		return core.PresenterInfo{}
	}
	return core.PresenterInfo{
		State:       p.state.String(),
		ReadSegment: int(p.readSeg),
		Serial:      p.serial,
		Position:    p.pos,
		Length:      p.length,
		Spill:       p.spill,
		TrailSeg:    int(p.trailSeg),
		InTrail:     p.inTrail,
	}
}

// Reset returns the presenter to its initial idle position.
func (p *Presenter) Reset() {
	if p == nil {
		return
	}
	p.state = presentIdle
	p.readSeg = core.SegmentID(p.segments - 1)
	p.serial = 0
	p.headOff = 0
	p.length = 0
	p.pos = 0
	p.segOff = 0
	p.spill = false
	p.trailSeg = 0
	p.inTrail = false
	p.presented = 0
	p.wordsOut = 0
	p.warps = 0
	p.restarts = 0
	p.brokenLinks = 0
}
