package main

import (
	"testing"

	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/hooks"
	"github.com/ordaq/framering/policy"
	"github.com/ordaq/framering/queue"
)

// allocRig wires the allocator to real lanes, a real mapper, and a real
// arena, and steps them the way the merger does: markers preempt the
// arbiter, engines drain under DRR, sealed frames are recorded as metadata.
type allocRig struct {
	arena   *Arena
	occ     *queue.Occupancy
	tracker *SegmentTracker
	mapper  *SegmentMapper
	ledger  *FrameLedger
	port    *WritePort
	broker  *hooks.PluginBroker
	arbiter *Arbiter
	lanes   []*Lane
	alloc   *FrameAllocator
	step    uint64
	results []core.FrameResult
}

func newAllocRig(t *testing.T, cfg *Config, pol policy.Manager) *allocRig {
	t.Helper()
	broker := hooks.NewPluginBroker()
	arena := NewArena(cfg.Segments, cfg.SegmentWords)
	occ := queue.NewOccupancy(cfg.Segments, cfg.SegmentWords)
	tracker := NewSegmentTracker(cfg.Segments, cfg.MetaDepth)
	mapper := NewSegmentMapper(cfg.Segments, cfg.SegmentWords, tracker, occ, broker)
	ledger := NewFrameLedger()
	port := NewWritePort(arena, mapper, occ, ledger, broker)

	rig := &allocRig{
		arena:   arena,
		occ:     occ,
		tracker: tracker,
		mapper:  mapper,
		ledger:  ledger,
		port:    port,
		broker:  broker,
		arbiter: NewArbiter(cfg.Lanes, 4, 8, 8),
	}
	for i := 0; i < cfg.Lanes; i++ {
		rig.lanes = append(rig.lanes, NewLane(i, cfg, port))
	}
	rig.alloc = NewFrameAllocator(rig.lanes, mapper, ledger, port, broker, pol, NewSerialAllocator())
	return rig
}

func allocRigConfig(lanes int) *Config {
	return &Config{
		Lanes:           lanes,
		Segments:        4,
		SegmentWords:    64,
		MetaDepth:       8,
		TicketDepth:     16,
		StagingWords:    256,
		ConveyorLatency: 0,
	}
}

func (r *allocRig) run(steps int) {
	for n := 0; n < steps; n++ {
		r.step++
		r.arena.BeginStep()
		r.mapper.BeginStep(r.step)
		for _, lane := range r.lanes {
			lane.Tick(r.step)
		}
		r.arbiter.Tick(r.step)

		allocWants := r.alloc.WantsPort()
		requests := make([]bool, len(r.lanes))
		for i, lane := range r.lanes {
			lane.Engine().Prime(r.step)
			requests[i] = lane.Engine().WantsPort()
		}
		switch g := r.arbiter.Grant(allocWants, requests); {
		case g == AllocatorID:
			r.alloc.DrainMarker(r.step)
		case g >= 0:
			r.lanes[g].Engine().WriteOne(r.step)
		}
		if !allocWants {
			r.alloc.Round(r.step)
		}

		if serial, ok := r.ledger.SealReady(); ok {
			res, taken := r.ledger.Take(serial)
			if taken {
				if res.Sealed {
					if seg, off, mapped := r.mapper.Resolve(res.HeaderAddr); mapped {
						res.Segment = seg
						r.tracker.Record(seg, off, res.Length, res.Serial)
						r.tracker.MarkComplete(seg)
					}
				}
				r.results = append(r.results, res)
				if floor, open := r.ledger.OldestHeaderAddr(); open {
					r.mapper.Prune(floor)
				}
			}
		}
	}
}

func (r *allocRig) shipStart(t *testing.T, lane int, ts uint64, groups, hits int) {
	t.Helper()
	ok := r.lanes[lane].TryShip(core.Ticket{
		Lane:           lane,
		Timestamp:      ts,
		FrameStart:     true,
		DeclaredGroups: groups,
		DeclaredHits:   hits,
	}, nil, r.step)
	if !ok {
		t.Fatalf("lane %d refused frame-start ticket at ts %d", lane, ts)
	}
}

func (r *allocRig) shipGroup(t *testing.T, lane int, ts uint64, words []core.Word) {
	t.Helper()
	ok := r.lanes[lane].TryShip(core.Ticket{
		Lane:      lane,
		Timestamp: ts,
		Length:    len(words),
	}, words, r.step)
	if !ok {
		t.Fatalf("lane %d refused group ticket at ts %d", lane, ts)
	}
}

func (r *allocRig) shipEnd(t *testing.T, lane int, ts uint64) {
	t.Helper()
	ok := r.lanes[lane].TryShip(core.Ticket{
		Lane:      lane,
		Timestamp: ts,
		FrameEnd:  true,
	}, nil, r.step)
	if !ok {
		t.Fatalf("lane %d refused frame-end ticket at ts %d", lane, ts)
	}
}

func hitWords(payloads ...uint64) []core.Word {
	out := make([]core.Word, len(payloads))
	for i, p := range payloads {
		out[i] = core.HitWord(p)
	}
	return out
}

func TestAllocatorAssemblesSingleLaneFrame(t *testing.T) {
	rig := newAllocRig(t, allocRigConfig(1), nil)

	rig.shipStart(t, 0, 0, 1, 3)
	rig.shipGroup(t, 0, 0, hitWords(0x11, 0x22, 0x33))
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)
	rig.shipEnd(t, 0, 64)
	rig.shipStart(t, 0, 128, 0, 0)

	rig.run(25)

	if len(rig.results) != 2 {
		t.Fatalf("expected 2 finalized frames, got %d", len(rig.results))
	}
	first := rig.results[0]
	if !first.Sealed {
		t.Fatalf("first frame not sealed: reason %s", first.Reason)
	}
	if first.Serial != 0 || first.Timestamp != 0 {
		t.Errorf("first frame identity = serial %d ts %d, want 0/0", first.Serial, first.Timestamp)
	}
	if first.Length != 9 || first.Groups != 1 || first.Hits != 3 {
		t.Errorf("first frame totals = len %d groups %d hits %d, want 9/1/3",
			first.Length, first.Groups, first.Hits)
	}
	if first.HeaderAddr != 0 || first.Segment != 0 {
		t.Errorf("first frame placed at addr %d seg %d, want 0/0", first.HeaderAddr, first.Segment)
	}

	read := func(off int) core.Word {
		w, ok := rig.arena.Read(0, off)
		if !ok {
			t.Fatalf("arena read failed at segment 0 offset %d", off)
		}
		return w
	}
	if w := read(0); !w.IsPreamble() || w.Serial() != 0 {
		t.Errorf("word 0 = %#x, want preamble for serial 0", uint64(w))
	}
	if w := read(1); w != core.TimestampWord(0) {
		t.Errorf("word 1 = %#x, want timestamp 0", uint64(w))
	}
	if g, h := read(2).Counts(); g != 1 || h != 3 {
		t.Errorf("counts word = %d groups %d hits, want 1/3", g, h)
	}
	if w := read(3); w != core.LengthWord(9) {
		t.Errorf("length word = %#x, want length 9", uint64(w))
	}
	if w := read(4); !w.IsSubheader() || w.GroupLane() != 0 || w.GroupHits() != 3 {
		t.Errorf("subheader = %#x, want lane 0 with 3 hits", uint64(w))
	}
	for i, want := range []uint64{0x11, 0x22, 0x33} {
		if w := read(5 + i); w != core.HitWord(want) {
			t.Errorf("hit %d = %#x, want payload %#x", i, uint64(w), want)
		}
	}
	if w := read(8); !w.IsTrailer() || w.Serial() != 0 {
		t.Errorf("word 8 = %#x, want trailer for serial 0", uint64(w))
	}

	entry, ok := rig.tracker.HeadEntry(0)
	if !ok {
		t.Fatal("no metadata recorded for sealed frame")
	}
	if entry.Offset != 0 || entry.Length != 9 || entry.Serial != 0 {
		t.Errorf("metadata = %+v, want offset 0 length 9 serial 0", entry)
	}
	if !rig.tracker.HeadComplete(0) {
		t.Error("sealed frame metadata not marked complete")
	}

	second := rig.results[1]
	if !second.Sealed || second.Serial != 1 || second.Length != 5 || second.Groups != 0 {
		t.Errorf("second frame = %+v, want sealed empty frame of length 5", second)
	}
	if second.HeaderAddr != 9 {
		t.Errorf("second frame header at %d, want 9", second.HeaderAddr)
	}

	if free := rig.lanes[0].StagingFree(); free != 256 {
		t.Errorf("staging credit = %d after drain, want full 256", free)
	}
	if q := rig.lanes[0].TicketsQueued(); q != 0 {
		t.Errorf("%d tickets still queued, want 0", q)
	}
}

func TestAllocatorCloseSequenceWriteOrder(t *testing.T) {
	rig := newAllocRig(t, allocRigConfig(1), nil)
	var markerAddrs []uint64
	rig.broker.RegisterWrite(func(ctx *hooks.WriteContext) error {
		if ctx.Allocator {
			markerAddrs = append(markerAddrs, ctx.Addr)
		}
		return nil
	})

	rig.shipStart(t, 0, 0, 1, 3)
	rig.shipGroup(t, 0, 0, hitWords(1, 2, 3))
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)

	rig.run(20)

	// Open beats first, then the group subheader, then at the rendezvous the
	// trailer and the two late header words of frame 0 before frame 1's own
	// preamble and timestamp.
	want := []uint64{0, 1, 4, 8, 2, 3, 9, 10}
	if len(markerAddrs) != len(want) {
		t.Fatalf("allocator wrote %d words %v, want %d", len(markerAddrs), markerAddrs, len(want))
	}
	for i, addr := range want {
		if markerAddrs[i] != addr {
			t.Fatalf("allocator write order %v, want %v", markerAddrs, want)
		}
	}
}

func TestAllocatorMergesTwoLanes(t *testing.T) {
	rig := newAllocRig(t, allocRigConfig(2), nil)

	rig.shipStart(t, 0, 0, 1, 2)
	rig.shipGroup(t, 0, 0, hitWords(0xA1, 0xA2))
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)

	rig.shipStart(t, 1, 0, 1, 2)
	rig.shipGroup(t, 1, 0, hitWords(0xB1, 0xB2))
	rig.shipEnd(t, 1, 0)
	rig.shipStart(t, 1, 64, 0, 0)

	rig.run(30)

	if len(rig.results) == 0 {
		t.Fatal("no frame finalized")
	}
	res := rig.results[0]
	if !res.Sealed {
		t.Fatalf("merged frame not sealed: reason %s", res.Reason)
	}
	if res.Groups != 2 || res.Hits != 4 || res.Length != 11 {
		t.Errorf("merged totals = groups %d hits %d len %d, want 2/4/11", res.Groups, res.Hits, res.Length)
	}

	read := func(off int) core.Word {
		w, ok := rig.arena.Read(0, off)
		if !ok {
			t.Fatalf("arena read failed at offset %d", off)
		}
		return w
	}
	if w := read(4); !w.IsSubheader() || w.GroupLane() != 0 || w.GroupHits() != 2 {
		t.Errorf("first subheader = %#x, want lane 0 with 2 hits", uint64(w))
	}
	if read(5) != core.HitWord(0xA1) || read(6) != core.HitWord(0xA2) {
		t.Error("lane 0 hits not contiguous after its subheader")
	}
	if w := read(7); !w.IsSubheader() || w.GroupLane() != 1 || w.GroupHits() != 2 {
		t.Errorf("second subheader = %#x, want lane 1 with 2 hits", uint64(w))
	}
	if read(8) != core.HitWord(0xB1) || read(9) != core.HitWord(0xB2) {
		t.Error("lane 1 hits not contiguous after its subheader")
	}
	if w := read(10); !w.IsTrailer() || w.Serial() != 0 {
		t.Errorf("trailer = %#x, want serial 0", uint64(w))
	}
}

func TestAllocatorWaitsForEveryActiveLane(t *testing.T) {
	rig := newAllocRig(t, allocRigConfig(2), nil)

	rig.shipStart(t, 0, 0, 0, 0)
	rig.run(5)

	if got := rig.alloc.FramesOpened(); got != 0 {
		t.Fatalf("frame opened with only one lane presenting, FramesOpened = %d", got)
	}
	if _, _, open := rig.alloc.CurrentFrame(); open {
		t.Fatal("frame reported open before rendezvous")
	}

	rig.shipStart(t, 1, 0, 1, 2)
	rig.run(5)

	if got := rig.alloc.FramesOpened(); got != 1 {
		t.Fatalf("FramesOpened = %d after both lanes presented, want 1", got)
	}
	serial, ts, open := rig.alloc.CurrentFrame()
	if !open || serial != 0 || ts != 0 {
		t.Errorf("current frame = serial %d ts %d open %v, want 0/0/true", serial, ts, open)
	}
}

func TestAllocatorMasksLaneAheadOfFrame(t *testing.T) {
	rig := newAllocRig(t, allocRigConfig(2), nil)

	rig.shipStart(t, 0, 0, 0, 0)
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)
	rig.shipStart(t, 1, 0, 0, 0)

	rig.run(10)

	masked := rig.alloc.MaskedLanes()
	if !masked[0] {
		t.Error("lane 0 holding a future frame-start should be masked")
	}
	if masked[1] {
		t.Error("lane 1 with no pending ticket should not be masked")
	}
	if q := rig.lanes[0].TicketsQueued(); q != 1 {
		t.Errorf("masked lane lost its ticket: %d queued, want 1", q)
	}
	if _, _, open := rig.alloc.CurrentFrame(); !open {
		t.Fatal("frame should still be open while waiting for lane 1")
	}

	rig.shipEnd(t, 1, 0)
	rig.shipStart(t, 1, 64, 0, 0)
	rig.run(15)

	if len(rig.results) != 1 {
		t.Fatalf("expected 1 finalized frame, got %d", len(rig.results))
	}
	if !rig.results[0].Sealed {
		t.Errorf("frame dropped with reason %s, want clean seal", rig.results[0].Reason)
	}
}

func TestAllocatorDropsLateGroupWithCredit(t *testing.T) {
	rig := newAllocRig(t, allocRigConfig(1), nil)

	rig.shipStart(t, 0, 0, 0, 0)
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)
	rig.run(12)

	if len(rig.results) != 1 || !rig.results[0].Sealed {
		t.Fatalf("first frame should have sealed, results = %+v", rig.results)
	}

	// Frame 1 (ts 64) is now open; a straggler group for ts 0 must be
	// discarded without touching the arena.
	written := rig.arena.WordsWritten()
	rig.shipGroup(t, 0, 0, hitWords(0xDD, 0xEE))
	rig.run(5)

	if got := rig.arena.WordsWritten(); got != written {
		t.Errorf("late group reached the arena: %d words written, want %d", got, written)
	}
	if free := rig.lanes[0].StagingFree(); free != 256 {
		t.Errorf("staging credit = %d after late drop, want full 256", free)
	}

	rig.shipEnd(t, 0, 64)
	rig.shipStart(t, 0, 128, 0, 0)
	rig.run(12)

	if len(rig.results) != 2 {
		t.Fatalf("expected 2 finalized frames, got %d", len(rig.results))
	}
	second := rig.results[1]
	if !second.Sealed || second.Groups != 0 || second.Hits != 0 {
		t.Errorf("frame holding the late drop = %+v, want clean empty seal", second)
	}
}

func TestAllocatorRejectsOversizedGroup(t *testing.T) {
	cfg := allocRigConfig(1)
	cfg.StagingWords = 1 << 17
	rig := newAllocRig(t, cfg, nil)

	huge := make([]core.Word, int(core.MaxGroupHits)+1)
	rig.shipStart(t, 0, 0, 1, len(huge))
	rig.shipGroup(t, 0, 0, huge)
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)

	rig.run(20)

	if len(rig.results) != 1 {
		t.Fatalf("expected 1 finalized frame, got %d", len(rig.results))
	}
	res := rig.results[0]
	if res.Sealed {
		t.Fatal("oversized group sealed cleanly, want drop")
	}
	if res.Reason != core.DropOverflow {
		t.Errorf("drop reason = %s, want %s", res.Reason, core.DropOverflow)
	}
	if rig.tracker.Pending(0) != 0 {
		t.Error("suppressed frame left metadata behind")
	}
	if free := rig.lanes[0].StagingFree(); free != cfg.StagingWords {
		t.Errorf("staging credit = %d after overflow drop, want %d", free, cfg.StagingWords)
	}
}

func TestAllocatorFlagsCountMismatch(t *testing.T) {
	rig := newAllocRig(t, allocRigConfig(1), nil)

	rig.shipStart(t, 0, 0, 2, 4)
	rig.shipGroup(t, 0, 0, hitWords(0x1, 0x2))
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)

	rig.run(20)

	if len(rig.results) != 1 {
		t.Fatalf("expected 1 finalized frame, got %d", len(rig.results))
	}
	res := rig.results[0]
	if res.Sealed {
		t.Fatal("frame with missing group sealed cleanly, want drop")
	}
	if res.Reason != core.DropCountMismatch {
		t.Errorf("drop reason = %s, want %s", res.Reason, core.DropCountMismatch)
	}
	if res.Groups != 1 || res.Hits != 2 {
		t.Errorf("observed totals = %d/%d, want 1/2", res.Groups, res.Hits)
	}
}

func TestAllocatorFlagsMissingFrameEnd(t *testing.T) {
	rig := newAllocRig(t, allocRigConfig(2), nil)

	rig.shipStart(t, 0, 0, 0, 0)
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)

	rig.shipStart(t, 1, 0, 0, 0)
	rig.shipStart(t, 1, 64, 0, 0)

	rig.run(20)

	if len(rig.results) != 1 {
		t.Fatalf("expected 1 finalized frame, got %d", len(rig.results))
	}
	res := rig.results[0]
	if res.Sealed {
		t.Fatal("frame missing a participant's end marker sealed cleanly")
	}
	if res.Reason != core.DropIncomplete {
		t.Errorf("drop reason = %s, want %s", res.Reason, core.DropIncomplete)
	}
}

func TestAllocatorSkipsMutedLane(t *testing.T) {
	pol := policy.WithLanePolicy(policy.NewDefaultManager(), policy.MuteWindows(map[int][]policy.Window{
		1: {{Start: 0, End: 100000}},
	}))
	rig := newAllocRig(t, allocRigConfig(2), pol)

	rig.shipStart(t, 0, 0, 1, 2)
	rig.shipGroup(t, 0, 0, hitWords(0x7, 0x8))
	rig.shipEnd(t, 0, 0)
	rig.shipStart(t, 0, 64, 0, 0)

	rig.run(25)

	if len(rig.results) != 1 {
		t.Fatalf("expected 1 finalized frame without the muted lane, got %d", len(rig.results))
	}
	res := rig.results[0]
	if !res.Sealed || res.Groups != 1 || res.Hits != 2 {
		t.Errorf("frame = %+v, want clean seal carrying lane 0's group only", res)
	}
}

func TestAllocatorSpillsAcrossSegmentBoundary(t *testing.T) {
	cfg := allocRigConfig(1)
	cfg.SegmentWords = 16
	rig := newAllocRig(t, cfg, nil)

	// First frame fills addresses 0..13 of column 0; the second frame's
	// declared span forces the mapper to program a trail into a fresh
	// segment before a single word lands.
	rig.shipStart(t, 0, 0, 1, 8)
	rig.shipGroup(t, 0, 0, hitWords(1, 2, 3, 4, 5, 6, 7, 8))
	rig.shipEnd(t, 0, 0)

	rig.shipStart(t, 0, 64, 1, 8)
	rig.shipGroup(t, 0, 64, hitWords(0x101, 0x102, 0x103, 0x104, 0x105, 0x106, 0x107, 0x108))
	rig.shipEnd(t, 0, 64)
	rig.shipStart(t, 0, 128, 0, 0)

	rig.run(50)

	if len(rig.results) != 2 {
		t.Fatalf("expected 2 finalized frames, got %d", len(rig.results))
	}
	spilled := rig.results[1]
	if !spilled.Sealed {
		t.Fatalf("spilled frame dropped with reason %s", spilled.Reason)
	}
	if spilled.HeaderAddr != 14 || spilled.Length != 14 {
		t.Errorf("spilled frame addr %d len %d, want 14/14", spilled.HeaderAddr, spilled.Length)
	}

	trail, ok := rig.tracker.Trail(0)
	if !ok || trail != 1 {
		t.Fatalf("trail link = %v/%v, want segment 1", trail, ok)
	}
	body, ok := rig.tracker.Body(1)
	if !ok || body != 0 {
		t.Fatalf("body link = %v/%v, want segment 0", body, ok)
	}

	// Header starts in segment 0; counts, length, the subheader, hits and
	// trailer all land in the trail segment.
	if w, _ := rig.arena.Read(0, 14); !w.IsPreamble() || w.Serial() != 1 {
		t.Errorf("head segment word 14 = %#x, want preamble serial 1", uint64(w))
	}
	if w, _ := rig.arena.Read(1, 0); w != core.CountsWord(1, 8) {
		t.Errorf("trail word 0 = %#x, want counts 1/8", uint64(w))
	}
	if w, _ := rig.arena.Read(1, 1); w != core.LengthWord(14) {
		t.Errorf("trail word 1 = %#x, want length 14", uint64(w))
	}
	if w, _ := rig.arena.Read(1, 2); !w.IsSubheader() || w.GroupHits() != 8 {
		t.Errorf("trail word 2 = %#x, want subheader with 8 hits", uint64(w))
	}
	if w, _ := rig.arena.Read(1, 3); w != core.HitWord(0x101) {
		t.Errorf("trail word 3 = %#x, want first hit", uint64(w))
	}
	if w, _ := rig.arena.Read(1, 11); !w.IsTrailer() || w.Serial() != 1 {
		t.Errorf("trail word 11 = %#x, want trailer serial 1", uint64(w))
	}

	// Once both frames sealed, the ledger floor moved past column 0 and the
	// mapper let go of it.
	cols := rig.mapper.MappedColumns()
	if _, still := cols[0]; still {
		t.Error("column 0 still mapped after its frames sealed")
	}
}
