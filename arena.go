package main

import (
	"fmt"

	"github.com/ordaq/framering/core"
)

// Arena is the segmented hit memory behind the single shared write port.
// It stores physical words only: logical-to-physical translation lives in
// the SegmentMapper and read locking in the Presenter. BeginStep re-arms
// the port; a second write in the same step is refused so a scheduling bug
// cannot silently corrupt a segment.
type Arena struct {
	segments     int
	segmentWords int
	words        []core.Word

	portUsed     bool
	wordsWritten uint64
}

// NewArena creates an arena of segments * segmentWords words.
// Geometry is assumed validated by ValidateConfig.
func NewArena(segments, segmentWords int) *Arena {
	return &Arena{
		segments:     segments,
		segmentWords: segmentWords,
		words:        make([]core.Word, segments*segmentWords),
	}
}

// BeginStep re-arms the write port for a new step.
func (a *Arena) BeginStep() {
	if a == nil {
		return
	}
	a.portUsed = false
}

// Write stores one word at (segment, offset). It fails when the port was
// already used this step or the target is out of range; callers decide
// whether that drops a frame or aborts the run.
func (a *Arena) Write(seg core.SegmentID, off int, w core.Word) error {
	if a == nil {
		return fmt.Errorf("write to nil arena")
	}
	if int(seg) < 0 || int(seg) >= a.segments {
		return fmt.Errorf("segment %d out of range [0,%d)", seg, a.segments)
	}
	if off < 0 || off >= a.segmentWords {
		return fmt.Errorf("offset %d out of range [0,%d)", off, a.segmentWords)
	}
	if a.portUsed {
		return fmt.Errorf("write port already driven this step")
	}
	a.words[int(seg)*a.segmentWords+off] = w
	a.portUsed = true
	a.wordsWritten++
	return nil
}

// Read returns the word at (segment, offset), false when out of range.
func (a *Arena) Read(seg core.SegmentID, off int) (core.Word, bool) {
	if a == nil || int(seg) < 0 || int(seg) >= a.segments {
		return 0, false
	}
	if off < 0 || off >= a.segmentWords {
		return 0, false
	}
	return a.words[int(seg)*a.segmentWords+off], true
}

// Segments returns the segment count.
func (a *Arena) Segments() int {
	if a == nil {
		return 0
	}
	return a.segments
}

// SegmentWords returns the words per segment.
func (a *Arena) SegmentWords() int {
	if a == nil {
		return 0
	}
	return a.segmentWords
}

// WordsWritten returns the total number of accepted writes.
func (a *Arena) WordsWritten() uint64 {
	if a == nil {
		return 0
	}
	return a.wordsWritten
}

// SegmentSnapshot returns a copy of one segment's words for the debug
// surface. Nil when the segment is out of range.
func (a *Arena) SegmentSnapshot(seg core.SegmentID) []core.Word {
	if a == nil || int(seg) < 0 || int(seg) >= a.segments {
		return nil
	}
	out := make([]core.Word, a.segmentWords)
	copy(out, a.words[int(seg)*a.segmentWords:(int(seg)+1)*a.segmentWords])
	return out
}

// Reset zeroes the storage and counters.
func (a *Arena) Reset() {
	if a == nil {
		return
	}
	for i := range a.words {
		a.words[i] = 0
	}
	a.portUsed = false
	a.wordsWritten = 0
}
