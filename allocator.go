package main

import (
	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/hooks"
	"github.com/ordaq/framering/policy"
)

// pendingMarker is one framing word waiting for its turn on the write port.
type pendingMarker struct {
	serial uint64
	addr   uint64
	word   core.Word
}

// FrameAllocator assembles frames out of per-lane tickets. It alternates
// between draining its pending marker queue (one framing word per granted
// step, with absolute port priority) and allocation rounds that classify
// every lane's head ticket against the open frame. Frames open on a
// rendezvous: every active lane's head must be a frame-start ticket, and
// the lanes bidding the minimum timestamp participate. Opening the next
// frame closes the current one, which is when the trailer and the late
// counts and length header words are enqueued.
type FrameAllocator struct {
	lanes   []*Lane
	mapper  *SegmentMapper
	ledger  *FrameLedger
	port    *WritePort
	broker  *hooks.PluginBroker
	policy  policy.Manager
	serials *SerialAllocator

	markerQ     []pendingMarker
	writeCursor uint64

	frameOpen  bool
	serial     uint64
	frameTS    uint64
	headerAddr uint64

	declaredGroups int
	declaredHits   int
	observedGroups int
	observedHits   int
	eofExpected    []bool
	eofSeen        []bool

	masked       []bool
	framesOpened uint64
}

// NewFrameAllocator wires the allocator to its collaborators.
func NewFrameAllocator(lanes []*Lane, mapper *SegmentMapper, ledger *FrameLedger, port *WritePort, broker *hooks.PluginBroker, pol policy.Manager, serials *SerialAllocator) *FrameAllocator {
	if pol == nil {
		pol = policy.NewDefaultManager()
	}
	return &FrameAllocator{
		lanes:       lanes,
		mapper:      mapper,
		ledger:      ledger,
		port:        port,
		broker:      broker,
		policy:      pol,
		serials:     serials,
		eofExpected: make([]bool, len(lanes)),
		eofSeen:     make([]bool, len(lanes)),
		masked:      make([]bool, len(lanes)),
	}
}

// WantsPort reports whether a framing word is waiting to be written.
func (a *FrameAllocator) WantsPort() bool {
	return a != nil && len(a.markerQ) > 0
}

// DrainMarker writes the oldest pending framing word. Called on steps the
// arbiter granted the port to the allocator.
func (a *FrameAllocator) DrainMarker(step uint64) {
	if a == nil || len(a.markerQ) == 0 {
		return
	}
	m := a.markerQ[0]
	a.markerQ = a.markerQ[1:]
	a.port.Write(step, m.serial, m.addr, m.word, -1, true)
}

func (a *FrameAllocator) pushMarker(serial, addr uint64, w core.Word) {
	a.markerQ = append(a.markerQ, pendingMarker{serial: serial, addr: addr, word: w})
	a.ledger.AddWork(serial, 1)
}

func (a *FrameAllocator) laneActive(lane int, step uint64) bool {
	return a.policy == nil || a.policy.LaneActive(lane, step)
}

// Round runs one allocation round: open a frame on rendezvous, otherwise
// classify each lane's head ticket for the current frame. Called on steps
// with no marker drain.
func (a *FrameAllocator) Round(step uint64) {
	if a == nil {
		return
	}
	for i := range a.masked {
		a.masked[i] = false
	}

	// Rendezvous: every active lane shows a frame-start head.
	rendezvous := false
	present := 0
	for i, lane := range a.lanes {
		head, ok := lane.HeadTicket()
		if !a.laneActive(i, step) {
			continue
		}
		if !ok || !head.FrameStart {
			rendezvous = false
			present = 0
			break
		}
		present++
		rendezvous = true
	}
	if rendezvous && present > 0 {
		a.openFrame(step)
		return
	}

	progress := false
	maskedCount := 0
	for i, lane := range a.lanes {
		head, ok := lane.HeadTicket()
		if !ok {
			continue
		}
		if !a.frameOpen {
			// Waiting for the first rendezvous; strays are dropped.
			if head.FrameStart {
				a.masked[i] = true
				maskedCount++
				continue
			}
			lane.ConsumeHead(step)
			if head.Length > 0 {
				lane.Engine().Enqueue(core.Handle{
					Kind:      core.HandleDrop,
					Lane:      i,
					SrcOffset: head.SrcOffset,
					Length:    head.Length,
				}, step)
			}
			progress = true
			continue
		}

		switch {
		case head.FrameStart:
			if head.Timestamp > a.frameTS {
				// Next frame's start; the lane waits for the rendezvous.
				a.masked[i] = true
				maskedCount++
			} else {
				GetLogger().Warnf("Lane %d stale frame start at %d (current %d)", i, head.Timestamp, a.frameTS)
				lane.ConsumeHead(step)
				progress = true
			}
		case head.FrameEnd:
			switch {
			case head.Timestamp == a.frameTS:
				lane.ConsumeHead(step)
				a.eofSeen[i] = true
				progress = true
			case head.Timestamp < a.frameTS:
				lane.ConsumeHead(step)
				progress = true
			default:
				a.masked[i] = true
				maskedCount++
			}
		default: // group ticket
			switch {
			case head.Timestamp == a.frameTS:
				a.allocateGroup(i, lane, head, step)
				progress = true
			case head.Timestamp < a.frameTS:
				// Arrived after its frame closed; bookkeeping only.
				lane.ConsumeHead(step)
				lane.Engine().Enqueue(core.Handle{
					Kind:      core.HandleDrop,
					Lane:      i,
					Serial:    a.serial,
					SrcOffset: head.SrcOffset,
					Length:    head.Length,
				}, step)
				progress = true
			default:
				a.masked[i] = true
				maskedCount++
			}
		}
	}

	// Every waiting lane is ahead of a frame that can no longer finish.
	if a.frameOpen && !progress && maskedCount > 0 {
		a.ledger.MarkInvalid(a.serial, core.DropIncomplete)
	}
}

// allocateGroup admits one on-time group: subheader marker, copy handle,
// cursor advance. Oversized groups are dropped whole and poison the frame.
func (a *FrameAllocator) allocateGroup(laneID int, lane *Lane, t core.Ticket, step uint64) {
	lane.ConsumeHead(step)
	if t.Length > core.MaxGroupHits {
		lane.Engine().Enqueue(core.Handle{
			Kind:      core.HandleDrop,
			Lane:      laneID,
			Serial:    a.serial,
			SrcOffset: t.SrcOffset,
			Length:    t.Length,
		}, step)
		a.ledger.MarkInvalid(a.serial, core.DropOverflow)
		return
	}
	a.pushMarker(a.serial, a.writeCursor, core.SubheaderWord(laneID, t.Length))
	if t.Length > 0 {
		a.ledger.AddWork(a.serial, t.Length)
		lane.Engine().Enqueue(core.Handle{
			Kind:      core.HandleCopy,
			Lane:      laneID,
			Serial:    a.serial,
			SrcOffset: t.SrcOffset,
			Dst:       a.writeCursor + 1,
			Length:    t.Length,
		}, step)
	}
	a.observedGroups++
	a.observedHits += t.Length
	a.writeCursor += 1 + uint64(t.Length)
}

// openFrame closes the current frame and opens the next at the minimum
// timestamp bid by the active lanes. The close/open marker sequence is
// trailer, counts, length, then the new preamble and timestamp.
func (a *FrameAllocator) openFrame(step uint64) {
	minTS := uint64(0)
	first := true
	for i, lane := range a.lanes {
		if !a.laneActive(i, step) {
			continue
		}
		head, ok := lane.HeadTicket()
		if !ok || !head.FrameStart {
			continue
		}
		if first || head.Timestamp < minTS {
			minTS = head.Timestamp
			first = false
		}
	}
	if first {
		return
	}

	if a.frameOpen {
		a.closeCurrent()
	}

	serial := a.serials.Allocate()
	declaredGroups, declaredHits := 0, 0
	for i := range a.eofExpected {
		a.eofExpected[i] = false
		a.eofSeen[i] = false
	}
	for i, lane := range a.lanes {
		if !a.laneActive(i, step) {
			continue
		}
		head, ok := lane.HeadTicket()
		if !ok || !head.FrameStart || head.Timestamp != minTS {
			continue
		}
		declaredGroups += head.DeclaredGroups
		declaredHits += head.DeclaredHits
		a.eofExpected[i] = true
		lane.ConsumeHead(step)
	}

	span := core.HeaderWords + declaredGroups + declaredHits + core.TrailerWords
	headerAddr, _ := a.mapper.PlanFrame(serial, a.writeCursor, span)
	a.writeCursor = headerAddr + core.HeaderWords

	a.ledger.Open(serial, minTS, headerAddr)
	a.pushMarker(serial, headerAddr, core.PreambleWord(serial))
	a.pushMarker(serial, headerAddr+1, core.TimestampWord(minTS))

	a.frameOpen = true
	a.serial = serial
	a.frameTS = minTS
	a.headerAddr = headerAddr
	a.declaredGroups = declaredGroups
	a.declaredHits = declaredHits
	a.observedGroups = 0
	a.observedHits = 0
	a.framesOpened++

	a.broker.EmitFrameOpen(&hooks.FrameOpenContext{
		Step:           step,
		Serial:         serial,
		Timestamp:      minTS,
		HeaderAddr:     headerAddr,
		DeclaredGroups: declaredGroups,
		DeclaredHits:   declaredHits,
	})
}

// closeCurrent enqueues the current frame's trailer and late header words
// and latches its validity verdict.
func (a *FrameAllocator) closeCurrent() {
	for i := range a.eofExpected {
		if a.eofExpected[i] && !a.eofSeen[i] {
			a.ledger.MarkInvalid(a.serial, core.DropIncomplete)
			break
		}
	}
	if a.observedGroups != a.declaredGroups || a.observedHits != a.declaredHits {
		a.ledger.MarkInvalid(a.serial, core.DropCountMismatch)
	}

	trailerAddr := a.writeCursor
	length := int(trailerAddr + 1 - a.headerAddr)
	a.pushMarker(a.serial, trailerAddr, core.TrailerWord(a.serial))
	a.pushMarker(a.serial, a.headerAddr+2, core.CountsWord(a.observedGroups, a.observedHits))
	a.pushMarker(a.serial, a.headerAddr+3, core.LengthWord(length))
	a.ledger.Close(a.serial, length, a.observedGroups, a.observedHits)

	a.writeCursor = trailerAddr + 1
	a.frameOpen = false
}

// MaskedLanes returns which lanes were held back in the last round.
func (a *FrameAllocator) MaskedLanes() []bool {
	if a == nil {
		return nil
	}
	out := make([]bool, len(a.masked))
	copy(out, a.masked)
	return out
}

// PendingMarkers returns the marker queue depth.
func (a *FrameAllocator) PendingMarkers() int {
	if a == nil {
		return 0
	}
	return len(a.markerQ)
}

// FramesOpened returns how many frames have been opened.
func (a *FrameAllocator) FramesOpened() uint64 {
	if a == nil {
		return 0
	}
	return a.framesOpened
}

// CurrentFrame returns the open frame's serial and timestamp.
func (a *FrameAllocator) CurrentFrame() (serial, timestamp uint64, open bool) {
	if a == nil || !a.frameOpen {
		return 0, 0, false
	}
	return a.serial, a.frameTS, true
}

// WriteCursor returns the next logical allocation address.
func (a *FrameAllocator) WriteCursor() uint64 {
	if a == nil {
		return 0
	}
	return a.writeCursor
}

// Reset clears all allocation state.
func (a *FrameAllocator) Reset() {
	if a == nil {
		return
	}
	a.markerQ = nil
	a.writeCursor = 0
	a.frameOpen = false
	a.serial = 0
	a.frameTS = 0
	a.headerAddr = 0
	a.declaredGroups = 0
	a.declaredHits = 0
	a.observedGroups = 0
	a.observedHits = 0
	for i := range a.eofExpected {
		a.eofExpected[i] = false
		a.eofSeen[i] = false
		a.masked[i] = false
	}
	a.framesOpened = 0
}
