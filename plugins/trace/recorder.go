package trace

import (
	"sync"

	"github.com/ordaq/framering/hooks"
)

// Event is one recorded pipeline event for the timeline view.
type Event struct {
	Seq    uint64         `json:"seq"`
	Step   uint64         `json:"step"`
	Kind   string         `json:"kind"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Event kinds emitted by the recorder.
const (
	KindFrameOpen    = "frame_open"
	KindFrameClose   = "frame_close"
	KindSpill        = "spill"
	KindFlush        = "flush"
	KindWarp         = "warp"
	KindPresentStart = "present_start"
	KindPresentDone  = "present_done"
)

// Recorder keeps a bounded ring of structural pipeline events. It stays off
// the per-step grant and write hooks, which fire every step.
type Recorder struct {
	mu sync.Mutex

	depth  int
	events []Event
	seq    uint64
}

// NewRecorder creates a recorder retaining up to depth events.
func NewRecorder(depth int) *Recorder {
	if depth <= 0 {
		depth = 512
	}
	return &Recorder{depth: depth}
}

// Install subscribes the recorder to the broker.
func (r *Recorder) Install(b *hooks.PluginBroker) {
	if r == nil || b == nil {
		return
	}
	b.RegisterFrameOpen(func(ctx *hooks.FrameOpenContext) error {
		r.record(ctx.Step, KindFrameOpen, map[string]any{
			"serial":    ctx.Serial,
			"timestamp": ctx.Timestamp,
			"groups":    ctx.DeclaredGroups,
			"hits":      ctx.DeclaredHits,
		})
		return nil
	})
	b.RegisterFrameClose(func(ctx *hooks.FrameCloseContext) error {
		r.record(ctx.Step, KindFrameClose, map[string]any{
			"serial":  ctx.Result.Serial,
			"sealed":  ctx.Result.Sealed,
			"reason":  ctx.Result.Reason.String(),
			"segment": int(ctx.Result.Segment),
			"length":  ctx.Result.Length,
		})
		return nil
	})
	b.RegisterSpill(func(ctx *hooks.SpillContext) error {
		r.record(ctx.Step, KindSpill, map[string]any{
			"serial": ctx.Serial,
			"head":   int(ctx.Head),
			"trail":  int(ctx.Trail),
		})
		return nil
	})
	b.RegisterFlush(func(ctx *hooks.FlushContext) error {
		r.record(ctx.Step, KindFlush, map[string]any{
			"segment":   int(ctx.Segment),
			"discarded": ctx.Discarded,
		})
		return nil
	})
	b.RegisterWarp(func(ctx *hooks.WarpContext) error {
		r.record(ctx.Step, KindWarp, map[string]any{
			"from": int(ctx.From),
			"to":   int(ctx.To),
		})
		return nil
	})
	b.RegisterPresentStart(func(ctx *hooks.PresentContext) error {
		r.record(ctx.Step, KindPresentStart, map[string]any{
			"serial":  ctx.Serial,
			"segment": int(ctx.Segment),
			"length":  ctx.Length,
		})
		return nil
	})
	b.RegisterPresentDone(func(ctx *hooks.PresentContext) error {
		r.record(ctx.Step, KindPresentDone, map[string]any{
			"serial": ctx.Serial,
			"length": ctx.Length,
		})
		return nil
	})
}

func (r *Recorder) record(step uint64, kind string, detail map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.events = append(r.events, Event{
		Seq:    r.seq,
		Step:   step,
		Kind:   kind,
		Detail: detail,
	})
	if len(r.events) > r.depth {
		r.events = r.events[len(r.events)-r.depth:]
	}
}

// Events returns retained events with Seq greater than sinceSeq, oldest
// first. Pass 0 for everything retained.
func (r *Recorder) Events(sinceSeq uint64) []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	start := 0
	for start < len(r.events) && r.events[start].Seq <= sinceSeq {
		start++
	}
	out := make([]Event, len(r.events)-start)
	copy(out, r.events[start:])
	return out
}

// LastSeq returns the sequence number of the newest event.
func (r *Recorder) LastSeq() uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}
