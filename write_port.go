package main

import (
	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/hooks"
	"github.com/ordaq/framering/queue"
)

// WritePort is the one path into the arena. The allocator's marker drain
// and every lane copy engine funnel through it, so the lock check, the
// occupancy shadow, the drain accounting, and the write hook fire the same
// way for all of them. A blocked or unresolvable write is skipped and the
// owning frame marked invalid; the word count still drains so the frame
// can reach its finalize decision.
type WritePort struct {
	arena     *Arena
	mapper    *SegmentMapper
	occupancy *queue.Occupancy
	ledger    *FrameLedger
	broker    *hooks.PluginBroker
	locker    readLocker
}

// NewWritePort wires the port to its collaborators.
func NewWritePort(arena *Arena, mapper *SegmentMapper, occ *queue.Occupancy, ledger *FrameLedger, broker *hooks.PluginBroker) *WritePort {
	return &WritePort{
		arena:     arena,
		mapper:    mapper,
		occupancy: occ,
		ledger:    ledger,
		broker:    broker,
	}
}

// SetReadLocker wires the presenter's lock view.
func (p *WritePort) SetReadLocker(locker readLocker) {
	if p == nil {
		return
	}
	p.locker = locker
}

// Write drives one word at the logical address on behalf of the frame.
// Returns true when the word actually landed in the arena.
func (p *WritePort) Write(step, serial, addr uint64, w core.Word, lane int, fromAllocator bool) bool {
	if p == nil {
		return false
	}
	seg, off, ok := p.mapper.Resolve(addr)
	skipped := false
	switch {
	case !ok:
		// Cursor ran past the planned span, nothing is mapped there.
		skipped = true
		p.ledger.MarkInvalid(serial, core.DropCountMismatch)
	case p.locker != nil && p.locker.IsLocked(seg):
		skipped = true
		p.ledger.MarkInvalid(serial, core.DropLockCollision)
	default:
		if err := p.arena.Write(seg, off, w); err != nil {
			GetLogger().Errorf("Arena write for frame %d at %d/%d failed: %v", serial, seg, off, err)
			skipped = true
			p.ledger.MarkInvalid(serial, core.DropLockCollision)
		} else if p.occupancy.MarkWritten(int(seg), off) {
			GetLogger().Warnf("Word %d/%d overwritten while still live", seg, off)
		}
	}
	p.ledger.Drained(serial, 1)
	p.broker.EmitWrite(&hooks.WriteContext{
		Step:      step,
		Segment:   seg,
		Offset:    off,
		Addr:      addr,
		Word:      w,
		Lane:      lane,
		Allocator: fromAllocator,
		Skipped:   skipped,
	})
	return !skipped
}
