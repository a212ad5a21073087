package main

import (
	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/hooks"
	"github.com/ordaq/framering/queue"
)

// readLocker is the presenter view the mapper needs: which segments are
// under active read and where the read pointer sits.
type readLocker interface {
	IsLocked(core.SegmentID) bool
	ReadSegment() core.SegmentID
}

// SegmentMapper owns the logical-to-physical translation. Logical
// addresses advance monotonically; the column addr/SegmentWords maps to a
// physical segment for as long as any open frame still references it, so
// the late trailer and header words of a closing frame land in that
// frame's segments, not the next frame's. New columns are assigned by
// rotation over segments that are neither read-locked nor holding a live
// column; a rotation target with unread queued metadata is sacrificed
// (tracker flush) rather than stalling the writer.
type SegmentMapper struct {
	segments int
	segWords uint64

	colMap       map[uint64]core.SegmentID
	lastAssigned int
	activeSeg    core.SegmentID

	tracker   *SegmentTracker
	occupancy *queue.Occupancy
	broker    *hooks.PluginBroker
	locker    readLocker

	step        uint64
	mutated     bool
	prevMutated bool
}

// NewSegmentMapper creates a mapper over the given geometry.
func NewSegmentMapper(segments, segWords int, tracker *SegmentTracker, occ *queue.Occupancy, broker *hooks.PluginBroker) *SegmentMapper {
	return &SegmentMapper{
		segments:     segments,
		segWords:     uint64(segWords),
		colMap:       make(map[uint64]core.SegmentID),
		lastAssigned: -1,
		activeSeg:    core.NoSegment,
		tracker:      tracker,
		occupancy:    occ,
		broker:       broker,
	}
}

// SetReadLocker wires the presenter's lock view. Must be set before the
// first step; the merger does this during assembly.
func (m *SegmentMapper) SetReadLocker(locker readLocker) {
	if m == nil {
		return
	}
	m.locker = locker
}

// BeginStep latches whether the previous step mutated the window layout.
func (m *SegmentMapper) BeginStep(step uint64) {
	if m == nil {
		return
	}
	m.step = step
	m.prevMutated = m.mutated
	m.mutated = false
}

// Stable reports that no structural mutation (column assignment, spill
// programming, forced advance, warp) happened this step or the previous
// one. The presenter only warps on stable steps.
func (m *SegmentMapper) Stable() bool {
	if m == nil {
		return false
	}
	return !m.prevMutated && !m.mutated
}

func (m *SegmentMapper) isLocked(s core.SegmentID) bool {
	return m.locker != nil && m.locker.IsLocked(s)
}

// PlanFrame fixes the physical placement of a frame about to open at
// proposedAddr with a worst-case span of declaredSpan words. If the
// continuing column sits under the presenter's read lock the header is
// pushed to the next column boundary instead of colliding. If the span
// crosses the column end, the trail column is mapped and both spill links
// are programmed in this same step. Returns the (possibly advanced)
// header address and whether the frame spills.
func (m *SegmentMapper) PlanFrame(serial, proposedAddr uint64, declaredSpan int) (uint64, bool) {
	if m == nil {
		return proposedAddr, false
	}
	headerAddr := proposedAddr
	startCol := headerAddr / m.segWords

	if seg, ok := m.colMap[startCol]; ok && m.isLocked(seg) {
		startCol++
		headerAddr = startCol * m.segWords
		m.mutated = true
	}

	headSeg, ok := m.colMap[startCol]
	if !ok {
		headSeg = m.assignColumn(startCol, core.NoSegment)
		m.mutated = true
	}
	m.activeSeg = headSeg
	if headSeg == core.NoSegment {
		// No assignable segment; writes into this column will be skipped
		// and the frame dropped at finalize.
		return headerAddr, false
	}

	spill := false
	if declaredSpan > int(m.segWords) {
		// A malformed declaration cannot reserve more than one boundary
		// crossing; the frame dies of its own count mismatch later.
		declaredSpan = int(m.segWords)
	}
	if declaredSpan > 0 {
		endCol := (headerAddr + uint64(declaredSpan) - 1) / m.segWords
		if endCol > startCol {
			trailSeg, mapped := m.colMap[endCol]
			if !mapped {
				trailSeg = m.assignColumn(endCol, headSeg)
				m.mutated = true
			}
			if trailSeg != core.NoSegment {
				m.tracker.SetTrail(headSeg, trailSeg)
				m.tracker.SetBody(trailSeg, headSeg)
				spill = true
				m.mutated = true
				m.broker.EmitSpill(&hooks.SpillContext{
					Step:   m.step,
					Serial: serial,
					Head:   headSeg,
					Trail:  trailSeg,
				})
			}
		}
	}
	return headerAddr, spill
}

// assignColumn picks the next writable segment by rotation, skipping
// read-locked segments, the spill partner to avoid, and segments still
// holding a live column. A target with unread metadata is flushed first.
// Returns NoSegment when every candidate is excluded.
func (m *SegmentMapper) assignColumn(col uint64, avoid core.SegmentID) core.SegmentID {
	live := make(map[core.SegmentID]bool, len(m.colMap))
	for _, seg := range m.colMap {
		live[seg] = true
	}
	for i := 1; i <= m.segments; i++ {
		cand := core.SegmentID((m.lastAssigned + i) % m.segments)
		if cand == avoid || live[cand] || m.isLocked(cand) {
			continue
		}
		if m.tracker.HasUnread(cand) {
			discarded := m.tracker.Flush(cand)
			m.occupancy.ResetSegment(int(cand))
			m.broker.EmitFlush(&hooks.FlushContext{
				Step:      m.step,
				Segment:   cand,
				Discarded: discarded,
			})
		}
		m.colMap[col] = cand
		m.lastAssigned = int(cand)
		return cand
	}
	GetLogger().Warnf("No writable segment for column %d", col)
	return core.NoSegment
}

// Resolve translates a logical address into (segment, offset). The second
// return is false when the column is not mapped; such writes are skipped.
func (m *SegmentMapper) Resolve(addr uint64) (core.SegmentID, int, bool) {
	if m == nil {
		return core.NoSegment, 0, false
	}
	seg, ok := m.colMap[addr/m.segWords]
	if !ok {
		return core.NoSegment, 0, false
	}
	return seg, int(addr % m.segWords), true
}

// Prune drops column mappings every open frame has moved past. Sealed
// frames are read through tracker metadata, never through the column map.
func (m *SegmentMapper) Prune(oldestLiveAddr uint64) {
	if m == nil {
		return
	}
	floor := oldestLiveAddr / m.segWords
	for col := range m.colMap {
		if col < floor {
			delete(m.colMap, col)
		}
	}
}

// ActiveSegment returns the segment the writer is currently filling.
func (m *SegmentMapper) ActiveSegment() core.SegmentID {
	if m == nil {
		return core.NoSegment
	}
	return m.activeSeg
}

// Window returns the writable segments in ring order starting after the
// presenter's read segment. The presenter warps along this order.
func (m *SegmentMapper) Window() []core.SegmentID {
	if m == nil {
		return nil
	}
	read := core.NoSegment
	if m.locker != nil {
		read = m.locker.ReadSegment()
	}
	window := make([]core.SegmentID, 0, m.segments-1)
	start := int(read) + 1
	for i := 0; i < m.segments; i++ {
		seg := core.SegmentID((start + i) % m.segments)
		if seg == read {
			continue
		}
		window = append(window, seg)
	}
	return window
}

// SyncWindow marks the window as mutated after a presenter warp so the
// layout settles for a step before the next warp decision.
func (m *SegmentMapper) SyncWindow() {
	if m == nil {
		return
	}
	m.mutated = true
}

// MappedColumns returns a copy of the live column map for the debug
// surface, keyed by column.
func (m *SegmentMapper) MappedColumns() map[uint64]int {
	if m == nil {
		return nil
	}
	out := make(map[uint64]int, len(m.colMap))
	for col, seg := range m.colMap {
		out[col] = int(seg)
	}
	return out
}

// Reset clears all mappings and rotation state.
func (m *SegmentMapper) Reset() {
	if m == nil {
		return
	}
	m.colMap = make(map[uint64]core.SegmentID)
	m.lastAssigned = -1
	m.activeSeg = core.NoSegment
	m.step = 0
	m.mutated = false
	m.prevMutated = false
}
