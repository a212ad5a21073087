package core

// Ticket is a lane's self-describing pointer into its staging buffer. The
// allocator classifies it against the current frame cursor: matching
// timestamps are allocated, future ones mask the lane, past ones are dropped
// with credit returned.
type Ticket struct {
	Lane      int    // originating lane
	Timestamp uint64 // frame timestamp the staged data belongs to
	SrcOffset uint64 // absolute staging-ring offset of the first hit word
	Length    int    // staged hit words described by this ticket

	FrameStart bool // lane signals the start of a new frame
	FrameEnd   bool // lane has no further groups for this frame

	// Declared per-lane totals, meaningful on FrameStart tickets only. The
	// upstream formatter decodes these from the lane preamble.
	DeclaredGroups int
	DeclaredHits   int
}

// HandleKind distinguishes real copy work from bookkeeping-only descriptors.
type HandleKind uint8

const (
	// HandleCopy moves Length staged words into the arena.
	HandleCopy HandleKind = iota
	// HandleDrop performs no arena writes; it only returns staging credit
	// and advances the engine's completion pointer.
	HandleDrop
)

// String returns a short printable name for the kind.
func (k HandleKind) String() string {
	switch k {
	case HandleCopy:
		return "copy"
	case HandleDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// Handle is a copy descriptor issued by the allocator to a lane copy engine.
// Drop handles are explicit: a zero-length copy and an intentional drop are
// different states, never inferred from one another.
type Handle struct {
	Kind      HandleKind
	Lane      int
	Serial    uint64 // owning frame
	SrcOffset uint64 // absolute staging-ring offset
	Dst       uint64 // logical arena address of the first hit word
	Length    int    // words to move (copy) or credit to release (drop)
}
