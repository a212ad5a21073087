package main

import "github.com/ordaq/framering/core"

// segmentMeta is one segment's metadata queue and spill-link registers.
// Counters are absolute and never wrap backwards; the ring index is the
// counter modulo depth. The write pointer and completion counter advance
// on the writer side, the read pointer on the presenter side.
type segmentMeta struct {
	entries  []core.MetaEntry
	wr       uint64
	rd       uint64
	complete uint64

	trail      core.SegmentID
	trailValid bool
	body       core.SegmentID
	bodyValid  bool
}

// SegmentTracker owns the per-segment metadata queues and the spill
// linkage between a frame's head segment and its trail segment.
type SegmentTracker struct {
	segs  []segmentMeta
	depth int
}

// NewSegmentTracker creates a tracker for the given segment count, with
// room for depth queued frames per segment.
func NewSegmentTracker(segments, depth int) *SegmentTracker {
	t := &SegmentTracker{
		segs:  make([]segmentMeta, segments),
		depth: depth,
	}
	for i := range t.segs {
		t.segs[i].entries = make([]core.MetaEntry, depth)
		t.segs[i].trail = core.NoSegment
		t.segs[i].body = core.NoSegment
	}
	return t
}

func (t *SegmentTracker) seg(s core.SegmentID) *segmentMeta {
	if t == nil || int(s) < 0 || int(s) >= len(t.segs) {
		return nil
	}
	return &t.segs[s]
}

// Record enqueues frame metadata on the segment holding its head.
// MetaDepth is validated so the queue fills only if a segment somehow
// holds more frames than fit in its words; refuse rather than overwrite.
func (t *SegmentTracker) Record(s core.SegmentID, offset, length int, serial uint64) {
	m := t.seg(s)
	if m == nil {
		return
	}
	if m.wr-m.rd >= uint64(t.depth) {
		GetLogger().Errorf("Segment %d metadata queue full, frame %d lost", s, serial)
		return
	}
	m.entries[m.wr%uint64(t.depth)] = core.MetaEntry{
		Offset: offset,
		Length: length,
		Serial: serial,
	}
	m.wr++
}

// MarkComplete advances the segment's completion counter: one more queued
// frame is fully written and safe to present.
func (t *SegmentTracker) MarkComplete(s core.SegmentID) {
	m := t.seg(s)
	if m == nil {
		return
	}
	if m.complete >= m.wr {
		GetLogger().Warnf("Segment %d completion ahead of enqueue", s)
		return
	}
	m.complete++
}

// HeadEntry returns the oldest unconsumed entry.
func (t *SegmentTracker) HeadEntry(s core.SegmentID) (core.MetaEntry, bool) {
	m := t.seg(s)
	if m == nil || m.wr == m.rd {
		return core.MetaEntry{}, false
	}
	return m.entries[m.rd%uint64(t.depth)], true
}

// HeadComplete reports whether the head entry is fully written.
func (t *SegmentTracker) HeadComplete(s core.SegmentID) bool {
	m := t.seg(s)
	return m != nil && m.complete > m.rd
}

// Consume retires the head entry after presentation (or a verify drop).
func (t *SegmentTracker) Consume(s core.SegmentID) {
	m := t.seg(s)
	if m == nil || m.wr == m.rd {
		return
	}
	m.rd++
	if m.complete < m.rd {
		m.complete = m.rd
	}
}

// Pending returns how many entries are queued and unconsumed.
func (t *SegmentTracker) Pending(s core.SegmentID) int {
	m := t.seg(s)
	if m == nil {
		return 0
	}
	return int(m.wr - m.rd)
}

// CompletePending returns how many unconsumed entries are fully written.
func (t *SegmentTracker) CompletePending(s core.SegmentID) int {
	m := t.seg(s)
	if m == nil {
		return 0
	}
	return int(m.complete - m.rd)
}

// HasUnread reports whether the segment holds queued metadata.
func (t *SegmentTracker) HasUnread(s core.SegmentID) bool {
	return t.Pending(s) > 0
}

// Flush discards the segment's unread metadata and clears its links,
// reclaiming the segment for writing. Returns how many entries were lost.
func (t *SegmentTracker) Flush(s core.SegmentID) int {
	m := t.seg(s)
	if m == nil {
		return 0
	}
	discarded := int(m.wr - m.rd)
	m.wr = m.rd
	m.complete = m.rd
	m.trail = core.NoSegment
	m.trailValid = false
	m.body = core.NoSegment
	m.bodyValid = false
	return discarded
}

// SetTrail programs the forward spill link: head's remainder lives in trail.
func (t *SegmentTracker) SetTrail(head, trail core.SegmentID) {
	m := t.seg(head)
	if m == nil {
		return
	}
	m.trail = trail
	m.trailValid = true
}

// SetBody programs the backward spill link: trail holds head's remainder.
func (t *SegmentTracker) SetBody(trail, head core.SegmentID) {
	m := t.seg(trail)
	if m == nil {
		return
	}
	m.body = head
	m.bodyValid = true
}

// Trail returns the segment's forward spill link.
func (t *SegmentTracker) Trail(s core.SegmentID) (core.SegmentID, bool) {
	m := t.seg(s)
	if m == nil || !m.trailValid {
		return core.NoSegment, false
	}
	return m.trail, true
}

// Body returns the segment's backward spill link.
func (t *SegmentTracker) Body(s core.SegmentID) (core.SegmentID, bool) {
	m := t.seg(s)
	if m == nil || !m.bodyValid {
		return core.NoSegment, false
	}
	return m.body, true
}

// ClearLinks drops both spill links of the segment.
func (t *SegmentTracker) ClearLinks(s core.SegmentID) {
	m := t.seg(s)
	if m == nil {
		return
	}
	m.trail = core.NoSegment
	m.trailValid = false
	m.body = core.NoSegment
	m.bodyValid = false
}

// HeadSerial returns the serial of the oldest queued frame, 0 when empty.
func (t *SegmentTracker) HeadSerial(s core.SegmentID) uint64 {
	if e, ok := t.HeadEntry(s); ok {
		return e.Serial
	}
	return 0
}

// Reset clears every segment.
func (t *SegmentTracker) Reset() {
	if t == nil {
		return
	}
	for i := range t.segs {
		t.segs[i].wr = 0
		t.segs[i].rd = 0
		t.segs[i].complete = 0
		t.segs[i].trail = core.NoSegment
		t.segs[i].trailValid = false
		t.segs[i].body = core.NoSegment
		t.segs[i].bodyValid = false
	}
}
