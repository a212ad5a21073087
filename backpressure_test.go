package main

import (
	"testing"
	"time"

	"github.com/ordaq/framering/policy"
)

func runMergerWithTimeout(t *testing.T, cfg *Config) *Merger {
	t.Helper()

	m, err := NewMerger(cfg)
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	done := make(chan struct{})

	go func() {
		m.Run()
		close(done)
	}()

	select {
	case <-done:
		return m
	case <-time.After(30 * time.Second):
		t.Fatalf("merger run exceeded timeout (step %d of %d)",
			m.CurrentStep(), cfg.TotalSteps)
	}

	return m
}

func stalledConfig(totalSteps int, windows []policy.Window) *Config {
	return &Config{
		Lanes:              2,
		Segments:           6,
		SegmentWords:       64,
		TotalSteps:         totalSteps,
		FramePeriodTicks:   64,
		SubFrameTicks:      16,
		ConveyorLatency:    1,
		Quantum:            4,
		QuantumCap:         8,
		HitProbability:     1.0,
		MaxGroupsPerLane:   1,
		MaxHitsPerGroup:    4,
		Seed:               5,
		EgressStallWindows: windows,
		Plugins:            []string{"invariants/checker"},
		Headless:           true,
		VisualMode:         "none",
	}
}

// A clean sink accepts every presented word; the stream must deliver them
// all with no restarts once the pipeline drains.
func TestBackpressureResponsiveSink(t *testing.T) {
	cfg := &Config{
		Lanes:            2,
		Segments:         4,
		SegmentWords:     32,
		TotalSteps:       600,
		FramePeriodTicks: 64,
		SubFrameTicks:    16,
		ConveyorLatency:  1,
		Quantum:          4,
		QuantumCap:       8,
		MaxGroupsPerLane: 1,
		MaxHitsPerGroup:  4,
		Schedule: map[uint64]map[int][]int{
			0: {0: {2}, 1: {1}},
			1: {0: {2}, 1: {1}},
			2: {0: {2}, 1: {1}},
			3: {0: {2}, 1: {1}},
			4: {0: {2}, 1: {1}},
		},
		Plugins:    []string{"invariants/checker"},
		Headless:   true,
		VisualMode: "none",
	}
	m := runMergerWithTimeout(t, cfg)
	defer m.Close()

	g := m.CollectStats().Global
	if g.Violations != 0 {
		t.Fatalf("invariant violations = %d", g.Violations)
	}
	if g.EgressStalls != 0 || g.Restarts != 0 {
		t.Errorf("clean sink saw stalls=%d restarts=%d", g.EgressStalls, g.Restarts)
	}
	if g.WordsPresented == 0 {
		t.Fatal("nothing presented")
	}
	if g.EgressDelivered != g.WordsPresented {
		t.Errorf("delivered %d of %d presented words after drain",
			g.EgressDelivered, g.WordsPresented)
	}
	if g.EgressInvalid != 0 || g.EgressOrphans != 0 {
		t.Errorf("egress invalid/orphans = %d/%d", g.EgressInvalid, g.EgressOrphans)
	}
}

// A mid-run blackout parks the presenter; once the window ends the stream
// must catch up without losing or reordering anything.
func TestBackpressureWindowRecovery(t *testing.T) {
	cfg := stalledConfig(3000, []policy.Window{{Start: 300, End: 900}})
	m := runMergerWithTimeout(t, cfg)
	defer m.Close()

	g := m.CollectStats().Global
	t.Logf("stalls=%d restarts=%d presented=%d delivered=%d invalid=%d",
		g.EgressStalls, g.Restarts, g.FramesPresented, g.EgressDelivered, g.EgressInvalid)

	if g.Violations != 0 {
		t.Fatalf("invariant violations = %d", g.Violations)
	}
	if g.EgressStalls == 0 {
		t.Error("blackout window never stalled the stream")
	}
	if g.FramesPresented == 0 {
		t.Error("presentation never recovered after the window")
	}
	if g.EgressInvalid != 0 || g.EgressOrphans != 0 {
		t.Errorf("egress invalid/orphans = %d/%d, recovery corrupted frames",
			g.EgressInvalid, g.EgressOrphans)
	}
	if g.WordsPresented-g.EgressDelivered > 2 {
		t.Errorf("presented %d but delivered %d, stream leaked words",
			g.WordsPresented, g.EgressDelivered)
	}
}

// Random per-step stalls exercise the skid register continuously rather
// than in one long blackout.
func TestBackpressureRandomStalls(t *testing.T) {
	cfg := stalledConfig(2000, nil)
	cfg.EgressStallRate = 0.4
	cfg.StallSeed = 17
	m := runMergerWithTimeout(t, cfg)
	defer m.Close()

	g := m.CollectStats().Global
	if g.Violations != 0 {
		t.Fatalf("invariant violations = %d", g.Violations)
	}
	if g.EgressStalls == 0 {
		t.Error("40% stall rate produced no stalls")
	}
	if g.FramesPresented == 0 {
		t.Error("nothing presented through random stalls")
	}
	if g.EgressInvalid != 0 {
		t.Errorf("randomly stalled stream delivered %d invalid frames", g.EgressInvalid)
	}
	if g.WordsPresented-g.EgressDelivered > 2 {
		t.Errorf("presented %d but delivered %d", g.WordsPresented, g.EgressDelivered)
	}
}

// Smoke coverage for the debug reporter; it must run its scenario without
// tripping the checker.
func TestDebugBackpressureReport(t *testing.T) {
	if testing.Short() {
		t.Skip("full blackout run")
	}
	DebugBackpressure()
}
