package main

import (
	"testing"

	"github.com/ordaq/framering/policy"
)

// TestBackpressureVerify creates a scenario where egress stalls MUST occur:
// the sink never accepts, so the presenter can only cycle through restart
// while the write side keeps going until it has to flush unread segments.
func TestBackpressureVerify(t *testing.T) {
	cfg := &Config{
		Lanes:              2,
		Segments:           6,
		SegmentWords:       64,
		TotalSteps:         1500,
		FramePeriodTicks:   64,
		SubFrameTicks:      16,
		ConveyorLatency:    1,
		Quantum:            4,
		QuantumCap:         8,
		HitProbability:     1.0,
		MaxGroupsPerLane:   1,
		MaxHitsPerGroup:    4,
		Seed:               5,
		EgressStallWindows: []policy.Window{
			{Start: 0, End: 1 << 30},
		},
		Plugins:    []string{"invariants/checker"},
		Headless:   true,
		VisualMode: "none",
	}

	m := runMergerWithTimeout(t, cfg)
	defer m.Close()

	g := m.CollectStats().Global
	t.Logf("stalls=%d restarts=%d flushes=%d sealed=%d presented-words=%d delivered=%d",
		g.EgressStalls, g.Restarts, g.Flushes, g.FramesSealed,
		g.WordsPresented, g.EgressDelivered)

	if g.Violations != 0 {
		t.Fatalf("invariant violations = %d", g.Violations)
	}
	if g.EgressStalls == 0 {
		t.Fatal("expected egress stalls but none were recorded")
	}
	if g.Restarts == 0 {
		t.Fatal("expected presenter restarts under a permanent blackout")
	}
	if g.EgressDelivered != 0 {
		t.Fatalf("sink never accepts, yet %d words delivered", g.EgressDelivered)
	}
	// The slot and skid registers bound what the presenter can push past
	// a stalled sink.
	if g.WordsPresented > 2 {
		t.Fatalf("presenter pushed %d words into a dead sink", g.WordsPresented)
	}
	// With the reader parked, the writer must eventually reclaim unread
	// segments to keep accepting frames.
	if g.Flushes == 0 {
		t.Fatal("expected unread-segment flushes once the arena wrapped")
	}
	if g.FramesSealed == 0 {
		t.Fatal("write side should keep sealing frames regardless of egress")
	}
}
