package main

import (
	"fmt"
	"time"
)

// BenchmarkResult stores performance test results
type BenchmarkResult struct {
	TotalSteps      int
	TotalDuration   time.Duration
	StepsPerSec     float64
	DurationPerStep time.Duration
	FramesSealed    uint64
	WordsWritten    uint64
}

// RunBenchmark runs a performance test in headless mode
func RunBenchmark(testSteps int, cfg *Config) (*BenchmarkResult, error) {
	// Override config for benchmark
	cfg.Headless = true
	cfg.VisualMode = "none"
	cfg.TotalSteps = testSteps

	merger, err := NewMerger(cfg)
	if err != nil {
		return nil, err
	}
	defer merger.Close()

	// Measure execution time
	startTime := time.Now()
	merger.Run()
	duration := time.Since(startTime)

	stepsPerSec := float64(testSteps) / duration.Seconds()
	durationPerStep := duration / time.Duration(testSteps)

	stats := merger.CollectStats()
	return &BenchmarkResult{
		TotalSteps:      testSteps,
		TotalDuration:   duration,
		StepsPerSec:     stepsPerSec,
		DurationPerStep: durationPerStep,
		FramesSealed:    stats.Global.FramesSealed,
		WordsWritten:    stats.Global.WordsWritten,
	}, nil
}

// RunBenchmarkSuite runs multiple benchmark tests with different step counts
func RunBenchmarkSuite() {
	fmt.Println("=== Headless Mode Performance Benchmark ===")
	fmt.Println()

	baseCfg := func() *Config {
		return &Config{
			Lanes:            4,
			Segments:         5,
			SegmentWords:     256,
			FramePeriodTicks: 64,
			SubFrameTicks:    16,
			ConveyorLatency:  1,
			Quantum:          4,
			QuantumCap:       8,
			HitProbability:   0.8,
			MaxGroupsPerLane: 2,
			MaxHitsPerGroup:  8,
			Seed:             99,
			Headless:         true,
			VisualMode:       "none",
		}
	}

	// Test with different step counts to get accurate measurements
	testSizes := []int{10000, 50000, 100000}
	iterations := 3 // Run each test multiple times and average

	for _, steps := range testSizes {
		fmt.Printf("Testing with %d steps (running %d iterations)...\n", steps, iterations)

		var totalStepsPerSec float64
		var totalDuration time.Duration

		for i := 0; i < iterations; i++ {
			result, err := RunBenchmark(steps, baseCfg())
			if err != nil {
				fmt.Printf("  Benchmark failed: %v\n", err)
				return
			}
			totalStepsPerSec += result.StepsPerSec
			totalDuration += result.TotalDuration
		}

		avgStepsPerSec := totalStepsPerSec / float64(iterations)
		avgDuration := totalDuration / time.Duration(iterations)

		fmt.Printf("  Average: %.2f steps/sec\n", avgStepsPerSec)
		fmt.Printf("  Average time: %v\n", avgDuration)
		fmt.Printf("  Average time per step: %.2f μs\n", float64(avgDuration.Nanoseconds())/float64(steps)/1000.0)
		fmt.Println()
	}

	// Final comprehensive test
	fmt.Println("Running comprehensive test (1,000,000 steps)...")
	finalResult, err := RunBenchmark(1000000, baseCfg())
	if err != nil {
		fmt.Printf("Benchmark failed: %v\n", err)
		return
	}
	fmt.Printf("Result: %.2f steps/sec\n", finalResult.StepsPerSec)
	fmt.Printf("Total time: %v\n", finalResult.TotalDuration)
	fmt.Printf("Time per step: %.2f μs\n", float64(finalResult.DurationPerStep.Nanoseconds())/1000.0)
	fmt.Printf("Frames sealed: %d, words written: %d\n",
		finalResult.FramesSealed, finalResult.WordsWritten)
}
