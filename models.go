package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ordaq/framering/policy"
)

// Pipeline constants
const (
	// DefaultVisualizationDelay is the delay between snapshot publishes in web mode
	DefaultVisualizationDelay = 50 * time.Millisecond

	// Lane buffering defaults
	DefaultTicketDepth  = 8   // show-ahead tickets per lane
	DefaultStagingWords = 256 // staged hit words per lane

	// Egress fanout defaults
	DefaultRecentFrames = 32  // records retained for the timeline view
	DefaultTraceDepth   = 512 // trace recorder ring depth

	// Control defaults
	DefaultCommandBuffer = 16 // buffered control commands

	// Config hash constants
	ConfigHashLength = 16 // Length of config hash in hex characters
)

// Config holds merger pipeline configuration values.
type Config struct {
	// arena geometry
	Lanes        int `yaml:"lanes"`
	Segments     int `yaml:"segments"`
	SegmentWords int `yaml:"segment_words"` // must be a power of two
	MetaDepth    int `yaml:"meta_depth"`    // metadata entries per segment

	// run length and timing
	TotalSteps       int `yaml:"total_steps"`
	FramePeriodTicks int `yaml:"frame_period_ticks"` // timestamp distance between frames
	SubFrameTicks    int `yaml:"sub_frame_ticks"`    // arbiter replenish interval; must divide FramePeriodTicks
	ConveyorLatency  int `yaml:"conveyor_latency"`   // fixed lane transport delay in steps

	// arbiter weights
	Quantum    int `yaml:"quantum"`     // words granted per lane per replenish
	QuantumCap int `yaml:"quantum_cap"` // saturation bound for banked quantum

	// lane buffering
	TicketDepth  int `yaml:"ticket_depth"`
	StagingWords int `yaml:"staging_words"`

	// workload generation
	// Workload overrides the generated default; built from the fields below
	// when nil (requires the run seed, so construction happens in Merger init).
	Workload         Workload                 `yaml:"-"`
	HitProbability   float64                  `yaml:"hit_probability"`     // per-group emission chance (0.0-1.0)
	MaxGroupsPerLane int                      `yaml:"max_groups_per_lane"` // groups per lane per frame
	MaxHitsPerGroup  int                      `yaml:"max_hits_per_group"`
	Seed             int64                    `yaml:"seed"`     // 0 means time-based
	Schedule         map[uint64]map[int][]int `yaml:"schedule"` // serial -> lane -> group hit counts

	// runtime policy
	EgressStallWindows []policy.Window         `yaml:"egress_stall_windows"`
	EgressStallRate    float64                 `yaml:"egress_stall_rate"`
	StallSeed          int64                   `yaml:"stall_seed"`
	LaneMuteWindows    map[int][]policy.Window `yaml:"lane_mute_windows"`

	// plugins loaded at startup
	Plugins []string `yaml:"plugins"`

	// egress fanout
	RecentFrames int    `yaml:"recent_frames"`
	TraceDepth   int    `yaml:"trace_depth"`
	NATSURL      string `yaml:"nats_url"` // empty disables publishing

	// visualization settings
	Headless   bool   `yaml:"headless"`    // true to run without visualization
	VisualMode string `yaml:"visual_mode"` // "web" | "none" (default: "web" if Headless is false)
	ListenAddr string `yaml:"listen_addr"` // web server address (default 127.0.0.1:8080)
}

// SerialAllocator provides sequential frame serials.
type SerialAllocator struct {
	next uint64
}

func NewSerialAllocator() *SerialAllocator {
	return &SerialAllocator{}
}

func (a *SerialAllocator) Allocate() uint64 {
	id := a.next
	a.next++
	return id
}

func (a *SerialAllocator) Reset() {
	a.next = 0
}

// computeConfigHash computes a hash of the configuration to detect config changes.
// The hash is based on key configuration fields that affect arena geometry.
func computeConfigHash(cfg *Config) string {
	if cfg == nil {
		return ""
	}
	hashInput := fmt.Sprintf("%d-%d-%d-%d-%d-%d-%d-%d-%d",
		cfg.Lanes,
		cfg.Segments,
		cfg.SegmentWords,
		cfg.MetaDepth,
		cfg.FramePeriodTicks,
		cfg.SubFrameTicks,
		cfg.ConveyorLatency,
		cfg.Quantum,
		cfg.QuantumCap)

	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])[:ConfigHashLength]
}
