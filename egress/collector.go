package egress

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ordaq/framering/core"
)

// FrameRecord is one reassembled output frame with its validation verdict.
type FrameRecord struct {
	RecordID  string   `json:"record_id"`
	Serial    uint64   `json:"serial"`
	Timestamp uint64   `json:"timestamp"`
	Groups    int      `json:"groups"`
	Hits      int      `json:"hits"`
	Words     []uint64 `json:"words"`
	Valid     bool     `json:"valid"`
	Issues    []string `json:"issues,omitempty"`
	Step      uint64   `json:"step"`
}

// Info converts the record into its snapshot form.
func (r FrameRecord) Info() core.FrameInfo {
	return core.FrameInfo{
		RecordID:  r.RecordID,
		Serial:    r.Serial,
		Timestamp: r.Timestamp,
		Groups:    r.Groups,
		Hits:      r.Hits,
		Words:     len(r.Words),
		Valid:     r.Valid,
		Issues:    r.Issues,
		Step:      r.Step,
	}
}

// Collector reassembles the egress word stream into frames, validates the
// envelope against its own declared counts, and fans complete records out
// to a bounded recent ring and an optional publisher.
type Collector struct {
	mu sync.Mutex

	runID     string
	subject   string
	publisher Publisher

	cur      []core.Word
	inFrame  bool
	curStart uint64

	recent      []FrameRecord
	recentDepth int

	total     uint64
	invalid   uint64
	truncated uint64
	orphans   uint64

	publishErrs    uint64
	lastPublishErr error
}

// NewCollector creates a collector. Pass a nil publisher to keep records
// in-process only.
func NewCollector(publisher Publisher, recentDepth int) *Collector {
	if recentDepth <= 0 {
		recentDepth = 32
	}
	runID := uuid.NewString()
	return &Collector{
		runID:       runID,
		subject:     fmt.Sprintf("framering.frames.%s", runID),
		publisher:   publisher,
		recentDepth: recentDepth,
	}
}

// RunID returns the collector's run identifier.
func (c *Collector) RunID() string {
	if c == nil {
		return ""
	}
	return c.runID
}

// Subject returns the publish subject for this run.
func (c *Collector) Subject() string {
	if c == nil {
		return ""
	}
	return c.subject
}

// Feed consumes one delivered word.
func (c *Collector) Feed(step uint64, word core.Word, sof, eof bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if sof {
		if c.inFrame {
			c.finalizeLocked(step, []string{"truncated by next frame start"})
		}
		c.inFrame = true
		c.curStart = step
		c.cur = c.cur[:0]
	}
	if !c.inFrame {
		c.orphans++
		return
	}
	c.cur = append(c.cur, word)
	if eof {
		c.finalizeLocked(step, nil)
	}
}

func (c *Collector) finalizeLocked(step uint64, issues []string) {
	words := make([]uint64, len(c.cur))
	for i, w := range c.cur {
		words[i] = uint64(w)
	}
	rec := FrameRecord{
		RecordID: uuid.NewString(),
		Words:    words,
		Issues:   issues,
		Step:     step,
	}
	c.validate(&rec)
	rec.Valid = len(rec.Issues) == 0

	c.total++
	if !rec.Valid {
		c.invalid++
	}
	if len(issues) > 0 {
		c.truncated++
	}

	c.recent = append(c.recent, rec)
	if len(c.recent) > c.recentDepth {
		c.recent = c.recent[1:]
	}

	if c.publisher != nil {
		if data, err := json.Marshal(rec); err == nil {
			if err := c.publisher.Publish(c.subject, data); err != nil {
				c.publishErrs++
				c.lastPublishErr = err
			}
		}
	}

	c.inFrame = false
	c.cur = c.cur[:0]
}

// validate walks the frame envelope and appends an issue per inconsistency.
func (c *Collector) validate(rec *FrameRecord) {
	words := rec.Words
	if len(words) < core.HeaderWords+core.TrailerWords {
		rec.Issues = append(rec.Issues, "frame shorter than envelope")
		return
	}

	head := core.Word(words[0])
	tail := core.Word(words[len(words)-1])

	if !head.IsPreamble() {
		rec.Issues = append(rec.Issues, "missing preamble")
		return
	}
	rec.Serial = head.Serial()
	rec.Timestamp = core.Word(words[1]).Payload()

	if !tail.IsTrailer() {
		rec.Issues = append(rec.Issues, "missing trailer")
		return
	}
	if tail.Serial() != rec.Serial {
		rec.Issues = append(rec.Issues,
			fmt.Sprintf("trailer serial %d != preamble serial %d", tail.Serial(), rec.Serial))
	}

	declaredGroups, declaredHits := core.Word(words[2]).Counts()
	declaredLen := int(core.Word(words[3]).Payload())

	groups := 0
	hits := 0
	i := core.HeaderWords
	for i < len(words)-core.TrailerWords {
		sub := core.Word(words[i])
		if !sub.IsSubheader() {
			rec.Issues = append(rec.Issues,
				fmt.Sprintf("expected subheader at word %d, marker 0x%02X", i, sub.Marker()))
			break
		}
		count := sub.GroupHits()
		groups++
		i++
		for n := 0; n < count && i < len(words)-core.TrailerWords; n++ {
			if core.Word(words[i]).IsMarker() {
				rec.Issues = append(rec.Issues,
					fmt.Sprintf("marker word inside group at word %d", i))
				break
			}
			hits++
			i++
		}
	}
	rec.Groups = groups
	rec.Hits = hits

	if groups != declaredGroups {
		rec.Issues = append(rec.Issues,
			fmt.Sprintf("declared %d groups, observed %d", declaredGroups, groups))
	}
	if hits != declaredHits {
		rec.Issues = append(rec.Issues,
			fmt.Sprintf("declared %d hits, observed %d", declaredHits, hits))
	}
	if declaredLen != len(words) {
		rec.Issues = append(rec.Issues,
			fmt.Sprintf("declared length %d, observed %d", declaredLen, len(words)))
	}
}

// Recent returns a copy of the retained records, oldest first.
func (c *Collector) Recent() []FrameRecord {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FrameRecord, len(c.recent))
	copy(out, c.recent)
	return out
}

// Counts returns the totals of assembled and invalid frames.
func (c *Collector) Counts() (total, invalid uint64) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.invalid
}

// Orphans returns the count of words that arrived outside any frame.
func (c *Collector) Orphans() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orphans
}

// PublishErrors returns the publish failure count and the last error.
func (c *Collector) PublishErrors() (uint64, error) {
	if c == nil {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publishErrs, c.lastPublishErr
}

// Reset discards assembly state, retained records, and counters. The run
// identifier is kept.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur[:0]
	c.inFrame = false
	c.recent = nil
	c.total = 0
	c.invalid = 0
	c.truncated = 0
	c.orphans = 0
	c.publishErrs = 0
	c.lastPublishErr = nil
}
