package main

import "time"

// WorkloadFactory prepares workloads from a validated config.
type WorkloadFactory struct {
	seed int64
}

// NewWorkloadFactory creates a factory with a time-based fallback seed.
func NewWorkloadFactory() *WorkloadFactory {
	return &WorkloadFactory{seed: time.Now().UnixNano()}
}

// WithSeed overrides the fallback seed (useful for tests).
func (f *WorkloadFactory) WithSeed(seed int64) *WorkloadFactory {
	f.seed = seed
	return f
}

// BuildDefault returns the workload the feeder should run: an explicit
// instance wins, then a schedule script, then the probability model.
func (f *WorkloadFactory) BuildDefault(cfg *Config) Workload {
	if cfg == nil {
		return nil
	}
	if cfg.Workload != nil {
		return cfg.Workload
	}
	if len(cfg.Schedule) > 0 {
		return NewScheduleWorkload(cfg.Lanes, cfg.Schedule)
	}
	if cfg.HitProbability > 0 {
		seed := cfg.Seed
		if seed == 0 {
			seed = f.seed
		}
		return NewProbabilityWorkload(cfg.Lanes, cfg.HitProbability, cfg.MaxGroupsPerLane, cfg.MaxHitsPerGroup, seed)
	}
	return nil
}
