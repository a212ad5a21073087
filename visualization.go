package main

import "github.com/ordaq/framering/core"

// MergerFrame aggregates the state frontends need for one step. It is a
// plain snapshot: every slice is freshly built and nothing points back into
// the pipeline.
type MergerFrame struct {
	Step         uint64              `json:"step"`
	Paused       bool                `json:"paused"`
	Segments     []core.SegmentInfo  `json:"segments"`
	SegmentWords int                 `json:"segmentWords"`
	Lanes        []core.LaneInfo     `json:"lanes"`
	Allocator    core.AllocatorInfo  `json:"allocator"`
	Arbiter      core.ArbiterInfo    `json:"arbiter"`
	Presenter    core.PresenterInfo  `json:"presenter"`
	Stats        *MergerStats        `json:"stats,omitempty"`
	Recent       []core.FrameInfo    `json:"recentFrames,omitempty"`
	ConfigHash   string              `json:"configHash,omitempty"` // detects config changes across resets
}
