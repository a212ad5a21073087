package queue

// wordBitmap stores per-word occupancy bits for one segment.
type wordBitmap struct {
	words []uint64
	live  int
}

func newWordBitmap(bits int) wordBitmap {
	return wordBitmap{words: make([]uint64, (bits+63)/64)}
}

func (b *wordBitmap) set(index int) bool {
	word := index / 64
	if word < 0 || word >= len(b.words) {
		return false
	}
	mask := uint64(1) << (uint(index) % 64)
	if b.words[word]&mask != 0 {
		return false
	}
	b.words[word] |= mask
	b.live++
	return true
}

func (b *wordBitmap) clear(index int) bool {
	word := index / 64
	if word < 0 || word >= len(b.words) {
		return false
	}
	mask := uint64(1) << (uint(index) % 64)
	if b.words[word]&mask == 0 {
		return false
	}
	b.words[word] &^= mask
	b.live--
	return true
}

func (b *wordBitmap) get(index int) bool {
	word := index / 64
	if word < 0 || word >= len(b.words) {
		return false
	}
	return b.words[word]&(uint64(1)<<(uint(index)%64)) != 0
}

func (b *wordBitmap) reset() {
	for i := range b.words {
		b.words[i] = 0
	}
	b.live = 0
}

// Occupancy records which arena words currently hold live, unconsumed data.
// It is a diagnostic shadow of the arena: writes mark words live, presenter
// reads mark them consumed, and a flush resets the whole segment. The
// datapath never branches on it; invariant checkers and the debug surface do.
type Occupancy struct {
	segments int
	segWords int
	bitmaps  []wordBitmap
}

// NewOccupancy creates an occupancy registry for segments * segWords words.
func NewOccupancy(segments, segWords int) *Occupancy {
	o := &Occupancy{
		segments: segments,
		segWords: segWords,
		bitmaps:  make([]wordBitmap, segments),
	}
	for i := range o.bitmaps {
		o.bitmaps[i] = newWordBitmap(segWords)
	}
	return o
}

// MarkWritten records a write. It reports true when the word was already
// live, i.e. written again before anything consumed it.
func (o *Occupancy) MarkWritten(seg, off int) bool {
	if o == nil || seg < 0 || seg >= o.segments || off < 0 || off >= o.segWords {
		return false
	}
	return !o.bitmaps[seg].set(off)
}

// MarkConsumed records a presenter read. It reports false when the word was
// not live (consumed twice, or never written).
func (o *Occupancy) MarkConsumed(seg, off int) bool {
	if o == nil || seg < 0 || seg >= o.segments || off < 0 || off >= o.segWords {
		return false
	}
	return o.bitmaps[seg].clear(off)
}

// Live reports whether the word holds unconsumed data.
func (o *Occupancy) Live(seg, off int) bool {
	if o == nil || seg < 0 || seg >= o.segments {
		return false
	}
	return o.bitmaps[seg].get(off)
}

// LiveCount returns how many words of the segment are live.
func (o *Occupancy) LiveCount(seg int) int {
	if o == nil || seg < 0 || seg >= o.segments {
		return 0
	}
	return o.bitmaps[seg].live
}

// ResetSegment clears a segment, used when it is flushed or reused.
func (o *Occupancy) ResetSegment(seg int) {
	if o == nil || seg < 0 || seg >= o.segments {
		return
	}
	o.bitmaps[seg].reset()
}

// Reset clears every segment.
func (o *Occupancy) Reset() {
	if o == nil {
		return
	}
	for i := range o.bitmaps {
		o.bitmaps[i].reset()
	}
}
