package core

// Snapshot mirror types for the debug surface. These are plain data with
// JSON tags; they are built from component state under the merger's snapshot
// lock and never feed back into the datapath.

// SegmentInfo describes one arena segment for visualization.
type SegmentInfo struct {
	ID           int    `json:"id"`
	MetaPending  int    `json:"metaPending"`  // enqueued, not yet consumed
	MetaComplete int    `json:"metaComplete"` // enqueued and fully written
	Locked       bool   `json:"locked"`       // under presenter read-lock
	ReadSegment  bool   `json:"readSegment"`  // presenter's current read segment
	InWindow     bool   `json:"inWindow"`
	TrailValid   bool   `json:"trailValid"`
	Trail        int    `json:"trail"`
	BodyValid    bool   `json:"bodyValid"`
	Body         int    `json:"body"`
	WordsWritten int    `json:"wordsWritten"` // occupancy, diagnostic only
	HeadSerial   uint64 `json:"headSerial"`   // serial of the oldest queued frame
}

// LaneInfo describes one input lane for visualization.
type LaneInfo struct {
	ID            int  `json:"id"`
	TicketsQueued int  `json:"ticketsQueued"`
	HandlesQueued int  `json:"handlesQueued"`
	StagingFree   int  `json:"stagingFree"`
	Quantum       int  `json:"quantum"`
	Masked        bool `json:"masked"` // lane held an early ticket last round
	InFlight      int  `json:"inFlight"` // tickets still in the ingest conveyor
}

// PresenterInfo describes the presenter FSM for visualization.
type PresenterInfo struct {
	State       string `json:"state"`
	ReadSegment int    `json:"readSegment"`
	Serial      uint64 `json:"serial"`
	Position    int    `json:"position"`
	Length      int    `json:"length"`
	Spill       bool   `json:"spill"`
	TrailSeg    int    `json:"trailSeg"`
	InTrail     bool   `json:"inTrail"`
}

// ArbiterInfo describes arbiter fairness state for visualization.
type ArbiterInfo struct {
	Hold     int   `json:"hold"` // lane holding the grant, -1 when none
	Priority int   `json:"priority"`
	Quantum  []int `json:"quantum"`
	Bypasses uint64 `json:"bypasses"`
}

// AllocatorInfo describes the frame allocator for visualization.
type AllocatorInfo struct {
	Serial         uint64 `json:"serial"` // current frame, meaningful when Open
	Timestamp      uint64 `json:"timestamp"`
	Open           bool   `json:"open"`
	WriteCursor    uint64 `json:"writeCursor"`
	PendingMarkers int    `json:"pendingMarkers"`
	FramesOpened   uint64 `json:"framesOpened"`
	ActiveSegment  int    `json:"activeSegment"` // mapper's current write segment
	MappedColumns  int    `json:"mappedColumns"`
}

// FrameInfo describes one collected egress frame for visualization.
type FrameInfo struct {
	RecordID  string `json:"recordID"`
	Serial    uint64 `json:"serial"`
	Timestamp uint64 `json:"timestamp"`
	Groups    int    `json:"groups"`
	Hits      int    `json:"hits"`
	Words     int    `json:"words"`
	Valid     bool   `json:"valid"`
	Issues    []string `json:"issues,omitempty"`
	Step      uint64 `json:"step"` // step the trailer was accepted
}
