package main

import "github.com/ordaq/framering/core"

// frameEntry tracks one frame from open until it seals or is suppressed.
type frameEntry struct {
	serial     uint64
	timestamp  uint64
	headerAddr uint64

	outstanding int // words promised but not yet written or skipped
	closed      bool

	length int // final totals, latched at close
	groups int
	hits   int

	invalid bool
	reason  core.DropReason
}

// FrameLedger tracks every open frame's outstanding copy work and validity.
// A frame seals when it is closed and all promised words have drained; an
// invalid frame is suppressed whole at that same moment instead. Frames
// seal strictly in serial order so presentation order never inverts, even
// when a later frame happens to drain first.
type FrameLedger struct {
	entries map[uint64]*frameEntry
}

// NewFrameLedger creates an empty ledger.
func NewFrameLedger() *FrameLedger {
	return &FrameLedger{entries: make(map[uint64]*frameEntry)}
}

// Open registers a new frame.
func (l *FrameLedger) Open(serial, timestamp, headerAddr uint64) {
	if l == nil {
		return
	}
	if _, exists := l.entries[serial]; exists {
		GetLogger().Warnf("Frame %d opened twice", serial)
		return
	}
	l.entries[serial] = &frameEntry{
		serial:     serial,
		timestamp:  timestamp,
		headerAddr: headerAddr,
	}
}

// AddWork promises n words of copy or marker work for the frame.
func (l *FrameLedger) AddWork(serial uint64, n int) {
	if l == nil || n <= 0 {
		return
	}
	if e := l.entries[serial]; e != nil {
		e.outstanding += n
	}
}

// Drained retires n promised words (written or deliberately skipped).
func (l *FrameLedger) Drained(serial uint64, n int) {
	if l == nil || n <= 0 {
		return
	}
	e := l.entries[serial]
	if e == nil {
		return
	}
	e.outstanding -= n
	if e.outstanding < 0 {
		GetLogger().Warnf("Frame %d drained below zero (%d)", serial, e.outstanding)
		e.outstanding = 0
	}
}

// MarkInvalid latches the first drop reason seen for the frame. Later
// hazards do not overwrite it; the root cause is what gets reported.
func (l *FrameLedger) MarkInvalid(serial uint64, reason core.DropReason) {
	if l == nil {
		return
	}
	e := l.entries[serial]
	if e == nil || e.invalid {
		return
	}
	e.invalid = true
	e.reason = reason
}

// Close marks the frame's allocation finished and latches its final totals.
// Copy work may still be draining.
func (l *FrameLedger) Close(serial uint64, length, groups, hits int) {
	if l == nil {
		return
	}
	if e := l.entries[serial]; e != nil {
		e.closed = true
		e.length = length
		e.groups = groups
		e.hits = hits
	}
}

// SealReady reports the oldest frame, if any, that is closed and fully
// drained. Younger frames never seal past an older one still draining.
func (l *FrameLedger) SealReady() (uint64, bool) {
	e := l.oldest()
	if e == nil || !e.closed || e.outstanding > 0 {
		return 0, false
	}
	return e.serial, true
}

// Take removes the frame and returns its result. Segment is left at
// NoSegment; the caller resolves the head segment for sealed frames.
func (l *FrameLedger) Take(serial uint64) (core.FrameResult, bool) {
	if l == nil {
		return core.FrameResult{}, false
	}
	e := l.entries[serial]
	if e == nil {
		return core.FrameResult{}, false
	}
	delete(l.entries, serial)
	return core.FrameResult{
		Serial:     e.serial,
		Timestamp:  e.timestamp,
		Sealed:     !e.invalid,
		Reason:     e.reason,
		Segment:    core.NoSegment,
		HeaderAddr: e.headerAddr,
		Length:     e.length,
		Groups:     e.groups,
		Hits:       e.hits,
	}, true
}

// Outstanding returns the frame's unretired word count.
func (l *FrameLedger) Outstanding(serial uint64) int {
	if l == nil {
		return 0
	}
	if e := l.entries[serial]; e != nil {
		return e.outstanding
	}
	return 0
}

// OpenFrames returns how many frames the ledger is tracking.
func (l *FrameLedger) OpenFrames() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// OldestHeaderAddr returns the logical header address of the oldest open
// frame. Mappings below its column are safe to prune.
func (l *FrameLedger) OldestHeaderAddr() (uint64, bool) {
	e := l.oldest()
	if e == nil {
		return 0, false
	}
	return e.headerAddr, true
}

func (l *FrameLedger) oldest() *frameEntry {
	if l == nil || len(l.entries) == 0 {
		return nil
	}
	var e *frameEntry
	for _, cand := range l.entries {
		if e == nil || cand.serial < e.serial {
			e = cand
		}
	}
	return e
}

// Reset drops all tracked frames.
func (l *FrameLedger) Reset() {
	if l == nil {
		return
	}
	l.entries = make(map[uint64]*frameEntry)
}
