package main

import (
	"testing"

	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/hooks"
	"github.com/ordaq/framering/queue"
)

type stubLocker struct {
	locked  map[core.SegmentID]bool
	readSeg core.SegmentID
}

func (s *stubLocker) IsLocked(seg core.SegmentID) bool { return s.locked[seg] }
func (s *stubLocker) ReadSegment() core.SegmentID      { return s.readSeg }

func newTestMapper(segments, segWords int) (*SegmentMapper, *SegmentTracker, *queue.Occupancy, *hooks.PluginBroker) {
	tr := NewSegmentTracker(segments, 8)
	occ := queue.NewOccupancy(segments, segWords)
	broker := hooks.NewPluginBroker()
	m := NewSegmentMapper(segments, segWords, tr, occ, broker)
	return m, tr, occ, broker
}

func TestMapperFirstColumnAssignment(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	m.BeginStep(0)

	addr, spill := m.PlanFrame(0, 0, 10)
	if addr != 0 || spill {
		t.Fatalf("PlanFrame = %d, %v; want 0, false", addr, spill)
	}
	seg, off, ok := m.Resolve(0)
	if !ok || seg != 0 || off != 0 {
		t.Errorf("Resolve(0) = %d/%d/%v, want 0/0/true", seg, off, ok)
	}
	seg, off, ok = m.Resolve(9)
	if !ok || seg != 0 || off != 9 {
		t.Errorf("Resolve(9) = %d/%d/%v, want 0/9/true", seg, off, ok)
	}
	if m.ActiveSegment() != 0 {
		t.Errorf("ActiveSegment = %d, want 0", m.ActiveSegment())
	}
}

func TestMapperFramesShareAColumn(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	m.BeginStep(0)

	m.PlanFrame(0, 0, 6)
	addr, spill := m.PlanFrame(1, 6, 6)
	if addr != 6 || spill {
		t.Fatalf("Second frame PlanFrame = %d, %v; want 6, false", addr, spill)
	}
	seg, off, ok := m.Resolve(6)
	if !ok || seg != 0 || off != 6 {
		t.Errorf("Resolve(6) = %d/%d/%v, want same segment 0", seg, off, ok)
	}
}

func TestMapperSpillProgramsLinks(t *testing.T) {
	m, tr, _, broker := newTestMapper(4, 16)
	var spills []hooks.SpillContext
	broker.RegisterSpill(func(ctx *hooks.SpillContext) error {
		spills = append(spills, *ctx)
		return nil
	})
	m.BeginStep(3)

	addr, spill := m.PlanFrame(0, 0, 20)
	if addr != 0 || !spill {
		t.Fatalf("PlanFrame = %d, %v; want 0, true (spill)", addr, spill)
	}
	trail, ok := tr.Trail(0)
	if !ok || trail != 1 {
		t.Errorf("Trail(0) = %d, %v; want 1", trail, ok)
	}
	body, ok := tr.Body(1)
	if !ok || body != 0 {
		t.Errorf("Body(1) = %d, %v; want 0", body, ok)
	}
	seg, off, ok := m.Resolve(16)
	if !ok || seg != 1 || off != 0 {
		t.Errorf("Resolve(16) = %d/%d/%v, want trail segment 1", seg, off, ok)
	}
	if len(spills) != 1 || spills[0].Head != 0 || spills[0].Trail != 1 || spills[0].Step != 3 {
		t.Errorf("Spill hook = %+v", spills)
	}
}

func TestMapperSpillColumnReused(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	m.BeginStep(0)

	// First frame plans a spill into column 1 but ends short of it.
	m.PlanFrame(0, 0, 20)
	// Next frame starts mid column 0 and crosses into the already
	// mapped column 1; no fresh segment is assigned.
	addr, spill := m.PlanFrame(1, 12, 8)
	if addr != 12 || !spill {
		t.Fatalf("PlanFrame = %d, %v; want 12, true", addr, spill)
	}
	seg, _, ok := m.Resolve(17)
	if !ok || seg != 1 {
		t.Errorf("Resolve(17) = %d/%v, want reused segment 1", seg, ok)
	}
}

func TestMapperForcedAdvancePastLockedColumn(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	locker := &stubLocker{locked: map[core.SegmentID]bool{}, readSeg: core.NoSegment}
	m.SetReadLocker(locker)
	m.BeginStep(0)

	m.PlanFrame(0, 0, 8)
	locker.locked[0] = true
	locker.readSeg = 0

	addr, spill := m.PlanFrame(1, 8, 8)
	if addr != 16 || spill {
		t.Fatalf("PlanFrame under lock = %d, %v; want forced advance to 16", addr, spill)
	}
	seg, off, ok := m.Resolve(16)
	if !ok || seg == 0 || off != 0 {
		t.Errorf("Resolve(16) = %d/%d/%v; head must avoid the locked segment", seg, off, ok)
	}
}

func TestMapperRotationSkipsLocked(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	locker := &stubLocker{locked: map[core.SegmentID]bool{1: true}, readSeg: 1}
	m.SetReadLocker(locker)
	m.BeginStep(0)

	m.PlanFrame(0, 0, 4)   // column 0 -> segment 0
	m.PlanFrame(1, 16, 4)  // column 1 -> next writable, skipping locked 1
	seg, _, ok := m.Resolve(16)
	if !ok || seg != 2 {
		t.Errorf("Resolve(16) = %d/%v, want segment 2", seg, ok)
	}
}

func TestMapperSacrificeFlushesTarget(t *testing.T) {
	m, tr, occ, broker := newTestMapper(4, 16)
	var flushes []hooks.FlushContext
	broker.RegisterFlush(func(ctx *hooks.FlushContext) error {
		flushes = append(flushes, *ctx)
		return nil
	})
	m.BeginStep(5)

	tr.Record(1, 0, 5, 99) // unread metadata in the rotation target
	occ.MarkWritten(1, 0)

	m.PlanFrame(0, 0, 4)  // column 0 -> segment 0
	m.PlanFrame(1, 16, 4) // column 1 -> segment 1, sacrificing its content

	seg, _, ok := m.Resolve(16)
	if !ok || seg != 1 {
		t.Fatalf("Resolve(16) = %d/%v, want segment 1", seg, ok)
	}
	if tr.HasUnread(1) {
		t.Error("Sacrificed segment should have no unread metadata")
	}
	if occ.LiveCount(1) != 0 {
		t.Error("Sacrificed segment occupancy should be reset")
	}
	if len(flushes) != 1 || flushes[0].Segment != 1 || flushes[0].Discarded != 1 || flushes[0].Step != 5 {
		t.Errorf("Flush hook = %+v", flushes)
	}
}

func TestMapperExhaustionLeavesColumnUnmapped(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	locker := &stubLocker{locked: map[core.SegmentID]bool{2: true, 3: true}, readSeg: 2}
	m.SetReadLocker(locker)
	m.BeginStep(0)

	m.PlanFrame(0, 0, 4)
	m.PlanFrame(1, 16, 4)
	addr, spill := m.PlanFrame(2, 32, 4)
	if addr != 32 || spill {
		t.Fatalf("PlanFrame = %d, %v", addr, spill)
	}
	if _, _, ok := m.Resolve(32); ok {
		t.Error("Column with no assignable segment must resolve to unmapped")
	}
}

func TestMapperPrune(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	m.BeginStep(0)
	m.PlanFrame(0, 0, 4)
	m.PlanFrame(1, 16, 4)

	m.Prune(16)
	if _, _, ok := m.Resolve(0); ok {
		t.Error("Column 0 should be pruned")
	}
	if _, _, ok := m.Resolve(16); !ok {
		t.Error("Column 1 is still live and must stay mapped")
	}
}

func TestMapperStability(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	m.BeginStep(0)
	if !m.Stable() {
		t.Fatal("Fresh mapper should be stable")
	}
	m.PlanFrame(0, 0, 4)
	if m.Stable() {
		t.Fatal("Column assignment must drop stability")
	}
	m.BeginStep(1)
	if m.Stable() {
		t.Fatal("Stability returns one step after the mutation, not immediately")
	}
	m.BeginStep(2)
	if !m.Stable() {
		t.Fatal("Mapper should settle after a quiet step")
	}
	m.SyncWindow()
	if m.Stable() {
		t.Fatal("SyncWindow counts as a mutation")
	}
}

func TestMapperWindowOrder(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	locker := &stubLocker{locked: map[core.SegmentID]bool{}, readSeg: 1}
	m.SetReadLocker(locker)

	window := m.Window()
	want := []core.SegmentID{2, 3, 0}
	if len(window) != len(want) {
		t.Fatalf("Window = %v, want %v", window, want)
	}
	for i := range want {
		if window[i] != want[i] {
			t.Fatalf("Window = %v, want %v", window, want)
		}
	}
}

func TestMapperReset(t *testing.T) {
	m, _, _, _ := newTestMapper(4, 16)
	m.BeginStep(0)
	m.PlanFrame(0, 0, 4)
	m.Reset()
	if _, _, ok := m.Resolve(0); ok {
		t.Error("Reset should clear the column map")
	}
	if m.ActiveSegment() != core.NoSegment {
		t.Error("Reset should clear the active segment")
	}
}
