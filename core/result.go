package core

// SegmentID identifies one fixed-capacity arena segment.
type SegmentID int

// NoSegment marks an unset segment reference.
const NoSegment SegmentID = -1

// DropReason classifies why a frame was sacrificed. Every reason is local
// and non-fatal: the frame is suppressed whole and the pipeline keeps going.
type DropReason uint8

const (
	DropNone DropReason = iota
	// DropCountMismatch: observed group/hit totals differ from the declared ones.
	DropCountMismatch
	// DropOverflow: a group's hit count exceeded the subheader field width.
	DropOverflow
	// DropIncomplete: a participating lane never delivered its share in time.
	DropIncomplete
	// DropLockCollision: a write targeted a segment locked by the presenter.
	DropLockCollision
	// DropBrokenLink: the spill back-link failed verification at presentation.
	DropBrokenLink
	// DropSacrificed: unread metadata was flushed so the segment could be reused.
	DropSacrificed
)

// String returns the reason label used in stats, logs, and metrics.
func (r DropReason) String() string {
	switch r {
	case DropNone:
		return "none"
	case DropCountMismatch:
		return "count_mismatch"
	case DropOverflow:
		return "overflow"
	case DropIncomplete:
		return "incomplete"
	case DropLockCollision:
		return "lock_collision"
	case DropBrokenLink:
		return "broken_link"
	case DropSacrificed:
		return "sacrificed"
	default:
		return "unknown"
	}
}

// FrameResult reports the fate of a closed frame: sealed into segment
// metadata, or dropped whole for the given reason.
type FrameResult struct {
	Serial     uint64
	Timestamp  uint64
	Sealed     bool
	Reason     DropReason // DropNone when sealed
	Segment    SegmentID  // head segment when sealed
	HeaderAddr uint64     // logical address of the preamble word
	Length     int        // total frame words
	Groups     int
	Hits       int
}

// MetaEntry is one per-segment metadata record: where a frame starts inside
// the segment and how many words it spans in total.
type MetaEntry struct {
	Offset int    // segment-local offset of the preamble word
	Length int    // total frame words, spill included
	Serial uint64 // owning frame, kept for diagnostics
}
