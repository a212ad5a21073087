package egress

import "github.com/ordaq/framering/core"

// Sink consumes words leaving the stream register.
type Sink interface {
	Ready(step uint64) bool
	Accept(step uint64, word core.Word, sof, eof bool)
}

// Stream is the output register pair between the presenter and the sink:
// a live slot plus a skid slot that absorbs the word already in flight
// when the sink stalls. The presenter must check CanAccept before pushing;
// with the skid free a push can never be lost.
type Stream struct {
	sink Sink

	slot      core.Word
	slotValid bool
	slotSOF   bool
	slotEOF   bool

	skid      core.Word
	skidValid bool
	skidSOF   bool
	skidEOF   bool

	delivered uint64
	stalls    uint64
}

// NewStream creates a stream register draining into the sink.
func NewStream(sink Sink) *Stream {
	return &Stream{sink: sink}
}

// CanAccept reports whether a push this step is safe.
func (s *Stream) CanAccept() bool {
	if s == nil {
		return false
	}
	return !s.skidValid
}

// Empty reports whether both registers are clear.
func (s *Stream) Empty() bool {
	if s == nil {
		return true
	}
	return !s.slotValid && !s.skidValid
}

// Push loads a word into the register pair. Frame boundaries are derived
// from the word's marker byte. Returns false if both slots are occupied.
func (s *Stream) Push(word core.Word) bool {
	if s == nil {
		return false
	}
	sof := word.IsPreamble()
	eof := word.IsTrailer()

	if !s.slotValid {
		s.slot = word
		s.slotSOF = sof
		s.slotEOF = eof
		s.slotValid = true
		return true
	}
	if !s.skidValid {
		s.skid = word
		s.skidSOF = sof
		s.skidEOF = eof
		s.skidValid = true
		return true
	}
	return false
}

// Step delivers at most one word to the sink.
func (s *Stream) Step(step uint64) {
	if s == nil || s.sink == nil {
		return
	}
	if !s.slotValid && s.skidValid {
		s.promote()
	}
	if !s.slotValid {
		return
	}
	if !s.sink.Ready(step) {
		s.stalls++
		return
	}
	s.sink.Accept(step, s.slot, s.slotSOF, s.slotEOF)
	s.slotValid = false
	s.delivered++
	if s.skidValid {
		s.promote()
	}
}

func (s *Stream) promote() {
	s.slot = s.skid
	s.slotSOF = s.skidSOF
	s.slotEOF = s.skidEOF
	s.slotValid = true
	s.skidValid = false
}

// Delivered returns the count of words handed to the sink.
func (s *Stream) Delivered() uint64 {
	if s == nil {
		return 0
	}
	return s.delivered
}

// Stalls returns the count of steps the sink refused a pending word.
func (s *Stream) Stalls() uint64 {
	if s == nil {
		return 0
	}
	return s.stalls
}

// Reset clears both registers and the counters.
func (s *Stream) Reset() {
	if s == nil {
		return
	}
	s.slotValid = false
	s.skidValid = false
	s.delivered = 0
	s.stalls = 0
}
