package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/ordaq/framering/hooks"
	"github.com/ordaq/framering/metric"
)

// stepObservation carries the gauge values the merger pushes into the
// reporter once per step.
type stepObservation struct {
	quantum        []int
	presenterState int
	pendingMarkers int
	laneTickets    []int
	delivered      uint64
	stalls         uint64
	bypasses       uint64
}

// metricsReporter mirrors broker events into the Prometheus registry and
// keeps plain counters of the frame lifecycle for CollectStats. It also
// logs wall-clock throughput at a fixed interval.
type metricsReporter struct {
	mu sync.Mutex
	m  *metric.Metrics

	interval   time.Duration
	lastReport time.Time
	stepsSince uint64

	framesOpened  uint64
	framesSealed  uint64
	framesDropped uint64
	dropReasons   map[string]uint64
	spills        uint64
	flushes       uint64
	warps         uint64

	lastDelivered uint64
	lastStalls    uint64
	lastBypasses  uint64
}

func newMetricsReporter(m *metric.Metrics) *metricsReporter {
	return &metricsReporter{
		m:           m,
		interval:    5 * time.Second,
		lastReport:  time.Now(),
		dropReasons: make(map[string]uint64),
	}
}

// Install subscribes the reporter to the pipeline's structural events.
func (r *metricsReporter) Install(b *hooks.PluginBroker) {
	if r == nil || b == nil {
		return
	}
	b.RegisterBundle(hooks.PluginDescriptor{
		Name:        "metrics/prometheus",
		Category:    hooks.PluginCategoryInstrumentation,
		Description: "mirrors pipeline events into the Prometheus registry",
	}, hooks.HookBundle{
		FrameOpen:  []hooks.FrameOpenHook{r.onFrameOpen},
		FrameClose: []hooks.FrameCloseHook{r.onFrameClose},
		Grant:      []hooks.GrantHook{r.onGrant},
		Write:      []hooks.WriteHook{r.onWrite},
		Spill:      []hooks.SpillHook{r.onSpill},
		Flush:      []hooks.FlushHook{r.onFlush},
		Warp:       []hooks.WarpHook{r.onWarp},
	})
}

func requesterLabel(lane int, allocator bool) string {
	if allocator {
		return "allocator"
	}
	return fmt.Sprintf("lane%d", lane)
}

func (r *metricsReporter) onFrameOpen(*hooks.FrameOpenContext) error {
	r.mu.Lock()
	r.framesOpened++
	r.mu.Unlock()
	r.m.RecordFrameOpened()
	return nil
}

func (r *metricsReporter) onFrameClose(ctx *hooks.FrameCloseContext) error {
	r.mu.Lock()
	if ctx.Result.Sealed {
		r.framesSealed++
	} else {
		r.framesDropped++
		r.dropReasons[ctx.Result.Reason.String()]++
	}
	r.mu.Unlock()
	if ctx.Result.Sealed {
		r.m.RecordFrameSealed(ctx.Result.Length)
	} else {
		r.m.RecordFrameDropped(ctx.Result.Reason.String())
	}
	return nil
}

func (r *metricsReporter) onGrant(ctx *hooks.GrantContext) error {
	r.m.RecordGrant(requesterLabel(ctx.Lane, ctx.Allocator))
	return nil
}

func (r *metricsReporter) onWrite(ctx *hooks.WriteContext) error {
	if ctx.Skipped {
		return nil
	}
	r.m.RecordWrite(requesterLabel(ctx.Lane, ctx.Allocator))
	return nil
}

func (r *metricsReporter) onSpill(*hooks.SpillContext) error {
	r.mu.Lock()
	r.spills++
	r.mu.Unlock()
	r.m.RecordSpill()
	return nil
}

func (r *metricsReporter) onFlush(*hooks.FlushContext) error {
	r.mu.Lock()
	r.flushes++
	r.mu.Unlock()
	r.m.RecordFlush()
	return nil
}

func (r *metricsReporter) onWarp(*hooks.WarpContext) error {
	r.mu.Lock()
	r.warps++
	r.mu.Unlock()
	r.m.RecordWarp()
	return nil
}

// SyncStep publishes the per-step gauges. The cumulative inputs advance by
// at most one per step, so each delta maps to a single counter increment.
func (r *metricsReporter) SyncStep(step uint64, obs stepObservation) {
	if r == nil {
		return
	}
	for lane, level := range obs.quantum {
		r.m.SetQuantum(lane, level)
	}
	r.m.SetPresenterState(obs.presenterState)
	r.m.SetQueueDepth("markers", obs.pendingMarkers)
	for lane, depth := range obs.laneTickets {
		r.m.SetQueueDepth(fmt.Sprintf("lane%d_tickets", lane), depth)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if obs.delivered > r.lastDelivered {
		r.m.RecordEgressWord()
		r.lastDelivered = obs.delivered
	}
	if obs.stalls > r.lastStalls {
		r.m.RecordEgressStall()
		r.lastStalls = obs.stalls
	}
	if obs.bypasses > r.lastBypasses {
		r.m.RecordBypass()
		r.lastBypasses = obs.bypasses
	}
	r.stepsSince++
	r.emitIfNeeded()
}

func (r *metricsReporter) emitIfNeeded() {
	now := time.Now()
	if now.Sub(r.lastReport) < r.interval {
		return
	}
	duration := now.Sub(r.lastReport).Seconds()
	throughput := float64(r.stepsSince)
	if duration > 0 {
		throughput = throughput / duration
	}
	GetLogger().Infof("Throughput %.0f steps/s, frames opened %d, sealed %d, dropped %d",
		throughput, r.framesOpened, r.framesSealed, r.framesDropped)
	r.stepsSince = 0
	r.lastReport = now
}

func (r *metricsReporter) FramesSealed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.framesSealed
}

func (r *metricsReporter) FramesDropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.framesDropped
}

// DropReasons returns a copy of the per-reason drop counts.
func (r *metricsReporter) DropReasons() map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.dropReasons) == 0 {
		return nil
	}
	out := make(map[string]uint64, len(r.dropReasons))
	for reason, n := range r.dropReasons {
		out[reason] = n
	}
	return out
}

func (r *metricsReporter) Spills() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spills
}

func (r *metricsReporter) Flushes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushes
}

func (r *metricsReporter) Warps() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warps
}
