package main

import (
	"fmt"
	"sort"
)

func PrintStats(stats *MergerStats) {
	if stats == nil || stats.Global == nil {
		fmt.Println("No stats available")
		return
	}
	g := stats.Global
	fmt.Println("=== Global Statistics ===")
	fmt.Printf("Steps: %d\n", g.Steps)
	fmt.Printf("Frames Opened: %d\n", g.FramesOpened)
	fmt.Printf("Frames Sealed: %d (%.2f%%)\n", g.FramesSealed, g.SealRate)
	fmt.Printf("Frames Dropped: %d\n", g.FramesDropped)
	if len(g.DropReasons) > 0 {
		reasons := make([]string, 0, len(g.DropReasons))
		for reason := range g.DropReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("  %s: %d\n", reason, g.DropReasons[reason])
		}
	}
	fmt.Printf("Frames Presented: %d (%d words)\n", g.FramesPresented, g.WordsPresented)
	fmt.Printf("Words Written: %d\n", g.WordsWritten)
	fmt.Printf("Egress Delivered: %d words, %d stalls\n", g.EgressDelivered, g.EgressStalls)
	fmt.Printf("Egress Frames: %d (%d invalid, %d orphan words)\n", g.EgressFrames, g.EgressInvalid, g.EgressOrphans)
	fmt.Printf("Spills: %d, Flushes: %d, Warps: %d, Restarts: %d, Broken Links: %d\n",
		g.Spills, g.Flushes, g.Warps, g.Restarts, g.BrokenLinks)
	fmt.Printf("Arbiter Bypasses: %d\n", g.Bypasses)
	fmt.Printf("Invariant Violations: %d\n", g.Violations)

	fmt.Println()
	fmt.Println("=== Lane Statistics ===")
	for _, st := range stats.PerLane {
		if st == nil {
			continue
		}
		fmt.Printf("Lane %d: Grants=%d, Tickets=%d, Handles=%d, StagingFree=%d, Quantum=%d, Masked=%v\n",
			st.ID, st.Grants, st.TicketsQueued, st.HandlesQueued, st.StagingFree, st.QuantumLevel, st.Masked)
	}

	fmt.Println()
	fmt.Println("=== Presenter ===")
	p := stats.Presenter
	fmt.Printf("State=%s ReadSegment=%d Serial=%d Position=%d/%d\n",
		p.State, p.ReadSegment, p.Serial, p.Position, p.Length)
}
