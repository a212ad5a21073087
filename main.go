package main

import (
	"flag"
	"fmt"
	"time"
)

func main() {
	var headless = flag.Bool("headless", false, "Run in headless mode (no web interface)")
	var benchmark = flag.Bool("benchmark", false, "Run performance benchmark suite")
	var configName = flag.String("config", "", "Predefined configuration name (e.g., 'merge_demo', 'spill_stress')")
	var configFile = flag.String("config-file", "", "YAML configuration file (takes precedence over -config)")
	var listenAddr = flag.String("listen", "", "Web interface listen address (default 127.0.0.1:8080)")
	var natsURL = flag.String("nats", "", "NATS URL for frame publishing (empty disables)")
	var totalSteps = flag.Int("steps", 0, "Override the configured step count")
	flag.Parse()

	// If benchmark mode, run benchmark suite
	if *benchmark {
		RunBenchmarkSuite()
		return
	}

	var cfg *Config
	if *configFile != "" {
		loaded, err := LoadConfigFile(*configFile)
		if err != nil {
			fmt.Printf("Cannot load config file '%s': %v\n", *configFile, err)
			return
		}
		cfg = loaded
	} else {
		// Use predefined configuration; default to the first preset.
		configs := GetPredefinedConfigs()
		selectedConfigName := *configName
		if selectedConfigName == "" && len(configs) > 0 {
			selectedConfigName = configs[0].Name
		}
		if selectedConfigName != "" {
			cfg = GetConfigByName(selectedConfigName)
			if cfg == nil {
				fmt.Printf("Warning: Configuration '%s' not found, using default\n", selectedConfigName)
			}
		}
	}

	if cfg == nil {
		// Fallback when no preset matches
		cfg = &Config{
			Lanes:            2,
			Segments:         4,
			SegmentWords:     256,
			TotalSteps:       5000,
			FramePeriodTicks: 64,
			SubFrameTicks:    16,
			ConveyorLatency:  1,
			Quantum:          4,
			QuantumCap:       8,
			HitProbability:   0.8,
			MaxGroupsPerLane: 2,
			MaxHitsPerGroup:  8,
			Plugins:          []string{"invariants/checker", "trace/recorder"},
		}
	}

	cfg.Headless = *headless
	if *headless {
		cfg.VisualMode = "none"
	} else {
		cfg.VisualMode = "web"
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *natsURL != "" {
		cfg.NATSURL = *natsURL
	}
	if *totalSteps > 0 {
		cfg.TotalSteps = *totalSteps
	}

	merger, err := NewMerger(cfg)
	if err != nil {
		fmt.Printf("Cannot start merger: %v\n", err)
		return
	}
	defer merger.Close()

	if *headless {
		// Headless mode: run the pipeline and print the report
		merger.Run()
		if stats := merger.CollectStats(); stats != nil {
			PrintStats(stats)
		}
	} else {
		// Web mode: run in a goroutine and keep serving HTTP
		go merger.Run()

		// Keep main thread alive to serve HTTP requests
		// The server is started by WebVisualizer
		for {
			time.Sleep(1 * time.Second)
		}
	}
}
