package main

import (
	"errors"
	"fmt"

	"github.com/ordaq/framering/core"
)

// ValidateConfig applies structural checks to Config and populates defaults
// where required.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if cfg.Lanes <= 0 {
		return fmt.Errorf("Lanes must be positive, got %d", cfg.Lanes)
	}
	if cfg.Lanes > 255 {
		return fmt.Errorf("Lanes must fit the subheader lane field, got %d", cfg.Lanes)
	}
	if cfg.Segments < 4 {
		return fmt.Errorf("Segments must be at least 4, got %d", cfg.Segments)
	}
	if cfg.SegmentWords <= 0 || cfg.SegmentWords&(cfg.SegmentWords-1) != 0 {
		return fmt.Errorf("SegmentWords must be a positive power of two, got %d", cfg.SegmentWords)
	}
	if cfg.TotalSteps <= 0 {
		return fmt.Errorf("TotalSteps must be positive, got %d", cfg.TotalSteps)
	}
	if cfg.FramePeriodTicks <= 0 {
		return fmt.Errorf("FramePeriodTicks must be positive, got %d", cfg.FramePeriodTicks)
	}
	if cfg.SubFrameTicks <= 0 {
		cfg.SubFrameTicks = cfg.FramePeriodTicks
	}
	if cfg.FramePeriodTicks%cfg.SubFrameTicks != 0 {
		return fmt.Errorf("SubFrameTicks %d must divide FramePeriodTicks %d",
			cfg.SubFrameTicks, cfg.FramePeriodTicks)
	}
	if cfg.ConveyorLatency < 0 {
		return fmt.Errorf("ConveyorLatency must be non-negative, got %d", cfg.ConveyorLatency)
	}
	if cfg.HitProbability < 0 || cfg.HitProbability > 1 {
		return fmt.Errorf("HitProbability must be within [0,1], got %.3f", cfg.HitProbability)
	}
	if cfg.EgressStallRate < 0 || cfg.EgressStallRate > 1 {
		return fmt.Errorf("EgressStallRate must be within [0,1], got %.3f", cfg.EgressStallRate)
	}

	if cfg.Quantum <= 0 {
		cfg.Quantum = 1
	}
	if cfg.QuantumCap < cfg.Quantum {
		cfg.QuantumCap = cfg.Quantum
	}
	if cfg.TicketDepth <= 0 {
		cfg.TicketDepth = DefaultTicketDepth
	}
	if cfg.StagingWords <= 0 {
		cfg.StagingWords = DefaultStagingWords
	}
	if cfg.MaxGroupsPerLane <= 0 {
		cfg.MaxGroupsPerLane = 1
	}
	if cfg.MaxHitsPerGroup <= 0 {
		cfg.MaxHitsPerGroup = 8
	}
	if cfg.MaxHitsPerGroup > cfg.StagingWords {
		return fmt.Errorf("MaxHitsPerGroup %d exceeds StagingWords %d",
			cfg.MaxHitsPerGroup, cfg.StagingWords)
	}
	if cfg.RecentFrames <= 0 {
		cfg.RecentFrames = DefaultRecentFrames
	}
	if cfg.TraceDepth <= 0 {
		cfg.TraceDepth = DefaultTraceDepth
	}

	// The worst-case frame must fit inside one segment so no frame ever
	// spans more than one segment boundary.
	worst := maxFrameWords(cfg)
	if worst > cfg.SegmentWords {
		return fmt.Errorf("worst-case frame of %d words exceeds SegmentWords %d",
			worst, cfg.SegmentWords)
	}

	// Scripted frames bypass the generator's shaping knobs, so each one is
	// checked against the same bound directly.
	for serial, lanes := range cfg.Schedule {
		words := core.HeaderWords + core.TrailerWords
		for lane, groups := range lanes {
			if lane < 0 || lane >= cfg.Lanes {
				return fmt.Errorf("Schedule frame %d names lane %d, want [0,%d)",
					serial, lane, cfg.Lanes)
			}
			for _, hits := range groups {
				if hits < 0 {
					return fmt.Errorf("Schedule frame %d lane %d has a negative hit count", serial, lane)
				}
				if hits > cfg.StagingWords {
					return fmt.Errorf("Schedule frame %d lane %d group of %d hits exceeds StagingWords %d",
						serial, lane, hits, cfg.StagingWords)
				}
				words += 1 + hits
			}
		}
		if words > cfg.SegmentWords {
			return fmt.Errorf("Schedule frame %d spans %d words, exceeding SegmentWords %d",
				serial, words, cfg.SegmentWords)
		}
	}

	// Shortest possible frame is the bare envelope; a segment packed with
	// them must still fit in the metadata ring.
	minFrame := core.HeaderWords + core.TrailerWords
	needed := cfg.SegmentWords/minFrame + 1
	if cfg.MetaDepth < needed {
		cfg.MetaDepth = needed
	}

	if cfg.VisualMode == "" {
		if cfg.Headless {
			cfg.VisualMode = "none"
		} else {
			cfg.VisualMode = "web"
		}
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8080"
	}

	return nil
}

// maxFrameWords returns the largest frame the configured workload can emit.
func maxFrameWords(cfg *Config) int {
	groups := cfg.Lanes * cfg.MaxGroupsPerLane
	return core.HeaderWords + groups*(1+cfg.MaxHitsPerGroup) + core.TrailerWords
}
