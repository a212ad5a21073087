package main

import "github.com/ordaq/framering/policy"

// PresetConfig represents a predefined merger configuration.
type PresetConfig struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Config      *Config `json:"-"`
}

// GetPredefinedConfigs returns all available predefined merger configurations.
func GetPredefinedConfigs() []PresetConfig {
	return []PresetConfig{
		{
			Name:        "merge_demo",
			Description: "Web demo: 2 lanes merging into a 4-segment arena with moderate load",
			Config: &Config{
				Lanes:            2,
				Segments:         4,
				SegmentWords:     256,
				TotalSteps:       4000,
				FramePeriodTicks: 64,
				SubFrameTicks:    16,
				ConveyorLatency:  2,
				Quantum:          4,
				QuantumCap:       8,
				HitProbability:   0.6,
				MaxGroupsPerLane: 2,
				MaxHitsPerGroup:  8,
				Seed:             42,
				Plugins:          []string{"invariants/checker", "trace/recorder"},
				Headless:         false,
				VisualMode:       "web",
			},
		},
		{
			Name:        "spill_stress",
			Description: "Frames nearly as large as a segment so almost every frame crosses a boundary and spills",
			Config: &Config{
				Lanes:            2,
				Segments:         5,
				SegmentWords:     128,
				TotalSteps:       8000,
				FramePeriodTicks: 128,
				SubFrameTicks:    32,
				ConveyorLatency:  2,
				Quantum:          8,
				QuantumCap:       16,
				HitProbability:   1.0,
				MaxGroupsPerLane: 2,
				MaxHitsPerGroup:  24,
				Seed:             7,
				Plugins:          []string{"invariants/checker"},
				Headless:         true,
				VisualMode:       "none",
			},
		},
		{
			Name:        "backpressure",
			Description: "Random egress stalls plus a long blackout window exercise the skid register and read locks",
			Config: &Config{
				Lanes:              2,
				Segments:           4,
				SegmentWords:       256,
				TotalSteps:         6000,
				FramePeriodTicks:   64,
				SubFrameTicks:      16,
				ConveyorLatency:    2,
				Quantum:            4,
				QuantumCap:         8,
				HitProbability:     0.7,
				MaxGroupsPerLane:   2,
				MaxHitsPerGroup:    8,
				Seed:               11,
				EgressStallRate:    0.3,
				StallSeed:          13,
				EgressStallWindows: []policy.Window{
					{Start: 2000, End: 2600},
				},
				Plugins:    []string{"invariants/checker"},
				Headless:   true,
				VisualMode: "none",
			},
		},
		{
			Name:        "fairness",
			Description: "4 lanes under heavy load with a small quantum so arbitration rotates constantly",
			Config: &Config{
				Lanes:            4,
				Segments:         4,
				SegmentWords:     256,
				TotalSteps:       8000,
				FramePeriodTicks: 96,
				SubFrameTicks:    24,
				ConveyorLatency:  1,
				Quantum:          2,
				QuantumCap:       4,
				HitProbability:   0.8,
				MaxGroupsPerLane: 2,
				MaxHitsPerGroup:  8,
				Seed:             23,
				Plugins:          []string{"invariants/checker"},
				Headless:         true,
				VisualMode:       "none",
			},
		},
		{
			Name:        "lane_dropout",
			Description: "Lane 1 goes silent mid-run, forcing incomplete frames and recovery once it returns",
			Config: &Config{
				Lanes:            3,
				Segments:         4,
				SegmentWords:     256,
				TotalSteps:       9000,
				FramePeriodTicks: 64,
				SubFrameTicks:    16,
				ConveyorLatency:  2,
				Quantum:          4,
				QuantumCap:       8,
				HitProbability:   0.6,
				MaxGroupsPerLane: 2,
				MaxHitsPerGroup:  8,
				Seed:             31,
				LaneMuteWindows:  map[int][]policy.Window{
					1: {{Start: 3000, End: 5000}},
				},
				Plugins:    []string{"invariants/checker"},
				Headless:   true,
				VisualMode: "none",
			},
		},
		{
			Name:        "scripted_minimal",
			Description: "Deterministic three-frame script, the smallest useful end-to-end exercise",
			Config: &Config{
				Lanes:            2,
				Segments:         4,
				SegmentWords:     128,
				TotalSteps:       1200,
				FramePeriodTicks: 64,
				SubFrameTicks:    16,
				ConveyorLatency:  1,
				Quantum:          4,
				QuantumCap:       8,
				MaxGroupsPerLane: 2,
				MaxHitsPerGroup:  8,
				Schedule: map[uint64]map[int][]int{
					0: {
						0: {3},
						1: {2, 2},
					},
					1: {
						0: {},
						1: {5},
					},
					2: {
						0: {1, 1},
						1: {},
					},
				},
				Plugins:    []string{"invariants/checker", "trace/recorder"},
				Headless:   true,
				VisualMode: "none",
			},
		},
		{
			Name:        "soak",
			Description: "8 lanes into an 8-segment arena for a long run at high occupancy",
			Config: &Config{
				Lanes:            8,
				Segments:         8,
				SegmentWords:     1024,
				TotalSteps:       50000,
				FramePeriodTicks: 512,
				SubFrameTicks:    64,
				ConveyorLatency:  3,
				Quantum:          16,
				QuantumCap:       32,
				HitProbability:   0.7,
				MaxGroupsPerLane: 2,
				MaxHitsPerGroup:  16,
				Plugins:          []string{"invariants/checker"},
				Headless:         true,
				VisualMode:       "none",
			},
		},
	}
}

// GetConfigByName returns a copy of the Config for the specified preset name.
// Returns nil if the configuration is not found.
// Note: the Workload is created in Merger initialization (requires rng).
func GetConfigByName(name string) *Config {
	configs := GetPredefinedConfigs()
	for _, preset := range configs {
		if preset.Name != name {
			continue
		}
		original := preset.Config
		if original == nil {
			return nil
		}
		cfgCopy := *original

		if original.Plugins != nil {
			cfgCopy.Plugins = make([]string, len(original.Plugins))
			copy(cfgCopy.Plugins, original.Plugins)
		}
		if original.EgressStallWindows != nil {
			cfgCopy.EgressStallWindows = make([]policy.Window, len(original.EgressStallWindows))
			copy(cfgCopy.EgressStallWindows, original.EgressStallWindows)
		}
		if original.LaneMuteWindows != nil {
			cfgCopy.LaneMuteWindows = make(map[int][]policy.Window, len(original.LaneMuteWindows))
			for lane, windows := range original.LaneMuteWindows {
				wcopy := make([]policy.Window, len(windows))
				copy(wcopy, windows)
				cfgCopy.LaneMuteWindows[lane] = wcopy
			}
		}
		if original.Schedule != nil {
			cfgCopy.Schedule = make(map[uint64]map[int][]int, len(original.Schedule))
			for serial, laneMap := range original.Schedule {
				cfgCopy.Schedule[serial] = make(map[int][]int, len(laneMap))
				for lane, groups := range laneMap {
					gcopy := make([]int, len(groups))
					copy(gcopy, groups)
					cfgCopy.Schedule[serial][lane] = gcopy
				}
			}
		}

		return &cfgCopy
	}
	return nil
}
