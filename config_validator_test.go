package main

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Lanes:            2,
		Segments:         4,
		SegmentWords:     256,
		TotalSteps:       1000,
		FramePeriodTicks: 64,
		SubFrameTicks:    16,
		ConveyorLatency:  2,
		Quantum:          4,
		QuantumCap:       8,
		HitProbability:   0.5,
		MaxGroupsPerLane: 2,
		MaxHitsPerGroup:  8,
		Headless:         true,
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	if cfg.TicketDepth != DefaultTicketDepth {
		t.Fatalf("expected ticket depth default, got %d", cfg.TicketDepth)
	}
	if cfg.StagingWords != DefaultStagingWords {
		t.Fatalf("expected staging default, got %d", cfg.StagingWords)
	}
	if cfg.MetaDepth < cfg.SegmentWords/5+1 {
		t.Fatalf("meta depth %d cannot hold a segment of minimum frames", cfg.MetaDepth)
	}
	if cfg.VisualMode != "none" {
		t.Fatalf("headless config should default to visual mode none, got %q", cfg.VisualMode)
	}
}

func TestValidateConfigRejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no lanes", func(c *Config) { c.Lanes = 0 }, "Lanes"},
		{"too many lanes", func(c *Config) { c.Lanes = 300 }, "lane field"},
		{"few segments", func(c *Config) { c.Segments = 3 }, "at least 4"},
		{"segment words not pow2", func(c *Config) { c.SegmentWords = 100 }, "power of two"},
		{"no steps", func(c *Config) { c.TotalSteps = 0 }, "TotalSteps"},
		{"period zero", func(c *Config) { c.FramePeriodTicks = 0 }, "FramePeriodTicks"},
		{"subframe misaligned", func(c *Config) { c.SubFrameTicks = 7 }, "divide"},
		{"negative latency", func(c *Config) { c.ConveyorLatency = -1 }, "ConveyorLatency"},
		{"bad probability", func(c *Config) { c.HitProbability = 1.5 }, "HitProbability"},
		{"bad stall rate", func(c *Config) { c.EgressStallRate = -0.1 }, "EgressStallRate"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		err := ValidateConfig(cfg)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestValidateConfigRejectsOversizedFrames(t *testing.T) {
	cfg := validConfig()
	cfg.SegmentWords = 64
	cfg.MaxGroupsPerLane = 4
	cfg.MaxHitsPerGroup = 16

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatalf("expected worst-case frame check to fail")
	}
	if !strings.Contains(err.Error(), "worst-case frame") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfigChecksSchedule(t *testing.T) {
	cases := []struct {
		name     string
		schedule map[uint64]map[int][]int
		want     string
	}{
		{"lane out of range", map[uint64]map[int][]int{0: {5: {1}}}, "names lane 5"},
		{"negative hits", map[uint64]map[int][]int{0: {0: {-2}}}, "negative hit count"},
		{"group beyond staging", map[uint64]map[int][]int{0: {0: {300}}}, "StagingWords"},
		{"frame beyond segment", map[uint64]map[int][]int{0: {0: {252}}}, "exceeding SegmentWords"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		cfg.Schedule = tc.schedule
		err := ValidateConfig(cfg)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}

	cfg := validConfig()
	cfg.Schedule = map[uint64]map[int][]int{
		0: {0: {3}, 1: {2, 2}},
		1: {1: {4}},
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected scripted config to validate, got %v", err)
	}
}

func TestValidateConfigNil(t *testing.T) {
	if err := ValidateConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
