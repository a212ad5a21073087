package core

// Word is one 64-bit unit of arena storage and egress traffic. The top byte
// is reserved marker space: values at or above markerFloor identify framing
// words, anything below is hit payload or a plain header field.
type Word uint64

// Marker byte values carried in the top byte of a Word.
const (
	MarkerPreamble  byte = 0xF5 // frame start, carries the serial
	MarkerSubheader byte = 0xF7 // group marker, carries lane and hit count
	MarkerTrailer   byte = 0xFA // frame end, carries the serial

	markerFloor byte = 0xF0
)

// Field widths and masks for packed words.
const (
	SerialBits = 48
	serialMask = (uint64(1) << SerialBits) - 1
	payloadBits = 56
	payloadMask = (uint64(1) << payloadBits) - 1

	// MaxGroupHits is the largest hit count a subheader word can carry.
	MaxGroupHits = 0xFFFF
)

// Fixed word counts of the frame envelope.
const (
	HeaderWords  = 4 // preamble, timestamp, counts, length
	TrailerWords = 1
)

// Marker returns the top byte of the word.
func (w Word) Marker() byte { return byte(w >> payloadBits) }

// IsMarker reports whether the word is a framing marker rather than payload.
func (w Word) IsMarker() bool { return w.Marker() >= markerFloor }

// IsPreamble reports whether the word opens a frame.
func (w Word) IsPreamble() bool { return w.Marker() == MarkerPreamble }

// IsSubheader reports whether the word opens a subheader group.
func (w Word) IsSubheader() bool { return w.Marker() == MarkerSubheader }

// IsTrailer reports whether the word closes a frame.
func (w Word) IsTrailer() bool { return w.Marker() == MarkerTrailer }

// Serial extracts the frame serial from a preamble or trailer word.
func (w Word) Serial() uint64 { return uint64(w) & serialMask }

// GroupLane extracts the originating lane from a subheader word.
func (w Word) GroupLane() int { return int((uint64(w) >> SerialBits) & 0xFF) }

// GroupHits extracts the hit count from a subheader word.
func (w Word) GroupHits() int { return int(uint64(w) & MaxGroupHits) }

// Counts splits an aggregate-counts header word into group and hit totals.
func (w Word) Counts() (groups, hits int) {
	return int((uint64(w) >> 32) & 0xFFFFFF), int(uint64(w) & 0xFFFFFFFF)
}

// Payload returns the word without its marker byte. For timestamp and
// length header words this is the full stored value.
func (w Word) Payload() uint64 { return uint64(w) & payloadMask }

// PreambleWord builds the frame-opening marker for the given serial.
func PreambleWord(serial uint64) Word {
	return Word(uint64(MarkerPreamble)<<payloadBits | serial&serialMask)
}

// TimestampWord builds the timestamp header word. Timestamps are truncated
// to the payload width so they can never alias a marker.
func TimestampWord(ts uint64) Word {
	return Word(ts & payloadMask)
}

// CountsWord builds the aggregate-counts header word.
func CountsWord(groups, hits int) Word {
	return Word(uint64(groups&0xFFFFFF)<<32 | uint64(hits)&0xFFFFFFFF)
}

// LengthWord builds the total-frame-length header word.
func LengthWord(words int) Word {
	return Word(uint64(words) & payloadMask)
}

// SubheaderWord builds a group marker for lane with the given hit count.
func SubheaderWord(lane, hits int) Word {
	return Word(uint64(MarkerSubheader)<<payloadBits |
		uint64(lane&0xFF)<<SerialBits |
		uint64(hits)&MaxGroupHits)
}

// TrailerWord builds the frame-closing marker for the given serial.
func TrailerWord(serial uint64) Word {
	return Word(uint64(MarkerTrailer)<<payloadBits | serial&serialMask)
}

// HitWord clamps an arbitrary payload into the non-marker space.
func HitWord(payload uint64) Word {
	return Word(payload & payloadMask)
}
