package main

import (
	"fmt"

	"github.com/ordaq/framering/policy"
)

// DebugBackpressure runs a short blacked-out run with a full report, to
// verify egress stalls propagate: the presenter must park in restart, the
// skid register must hold the in-flight words, and the writer must start
// flushing unread segments once the arena wraps.
func DebugBackpressure() {
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
		Headless:   true,
		VisualMode: "none",
	}

	fmt.Println("\n=== Backpressure Debug ===")
	fmt.Println("Configuration:")
	fmt.Printf("  EgressStallWindows: %v (egress never accepts)\n", cfg.EgressStallWindows)
	fmt.Printf("  Segments: %d x %d words\n", cfg.Segments, cfg.SegmentWords)
	fmt.Printf("  HitProbability: %.1f\n", cfg.HitProbability)

	merger, err := NewMerger(cfg)
	if err != nil {
		fmt.Printf("Cannot build merger: %v\n", err)
		return
	}
	defer merger.Close()

	fmt.Println("Running pipeline...")
	merger.Run()

	stats := merger.CollectStats()
	frame := merger.Snapshot()

	fmt.Println("\nFinal State:")
	fmt.Printf("  Presenter: state=%s serial=%d position=%d/%d\n",
		frame.Presenter.State, frame.Presenter.Serial,
		frame.Presenter.Position, frame.Presenter.Length)
	fmt.Printf("  Egress: stalls=%d delivered=%d (presented %d words)\n",
		stats.Global.EgressStalls, stats.Global.EgressDelivered,
		stats.Global.WordsPresented)
	fmt.Printf("  Presenter restarts: %d\n", stats.Global.Restarts)
	fmt.Printf("  Write side: opened=%d sealed=%d flushes=%d\n",
		stats.Global.FramesOpened, stats.Global.FramesSealed, stats.Global.Flushes)

	for _, lane := range stats.PerLane {
		if lane == nil {
			continue
		}
		fmt.Printf("  Lane %d: tickets=%d staging free=%d in flight=%d\n",
			lane.ID, lane.TicketsQueued, lane.StagingFree, lane.InFlight)
	}

	if stats.Global.EgressStalls == 0 {
		fmt.Println("  No stalls recorded.")
		return
	}
	fmt.Printf("  Skid occupancy at cutoff: %d words\n",
		stats.Global.WordsPresented-stats.Global.EgressDelivered)
}
