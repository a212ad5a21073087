package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/ordaq/framering/control"
	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/egress"
	"github.com/ordaq/framering/hooks"
	"github.com/ordaq/framering/metric"
	"github.com/ordaq/framering/plugins/invariants"
	"github.com/ordaq/framering/plugins/trace"
	"github.com/ordaq/framering/policy"
	"github.com/ordaq/framering/queue"
)

// Merger is the assembled pipeline: a feeder driving credited lanes, the
// frame allocator and per-lane copy engines sharing one write port under
// deficit round-robin, the segment mapper and tracker keeping the arena
// consistent, and the presenter streaming sealed frames out the far side.
// Everything advances in lock step, one word through the port per step.
type Merger struct {
	mu sync.RWMutex

	arena     *Arena
	occ       *queue.Occupancy
	tracker   *SegmentTracker
	mapper    *SegmentMapper
	ledger    *FrameLedger
	port      *WritePort
	lanes     []*Lane
	arbiter   *Arbiter
	alloc     *FrameAllocator
	presenter *Presenter
	stream    *egress.Stream
	recorder  *egress.Recorder
	feeder    *Feeder

	broker    *hooks.PluginBroker
	registry  *hooks.Registry
	metrics   *metric.Registry
	reporter  *metricsReporter
	checker   *invariants.Checker
	tracer    *trace.Recorder
	publisher egress.Publisher

	pol      policy.Manager
	cfg      *Config
	factory  *WorkloadFactory
	requests []bool // per-lane grant requests, reused every step

	step       uint64
	stepSignal *StepSignal

	visualizer control.Visualizer
	loop       *control.Loop

	isPaused       bool
	isRunning      bool
	stepPending    bool
	resetRequested bool
	resetCfg       *Config
}

// NewMerger validates the config and wires the full pipeline.
func NewMerger(cfg *Config) (*Merger, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	m := &Merger{factory: NewWorkloadFactory(), stepSignal: NewStepSignal()}
	if err := m.build(cfg); err != nil {
		return nil, err
	}
	m.visualizer = m.initVisualizer()
	m.loop = control.NewLoop(m.visualizer, m)
	return m, nil
}

// build constructs every component from a validated config. Reset calls it
// again with fresh state; the visualizer and command loop survive.
func (m *Merger) build(cfg *Config) error {
	m.cfg = cfg

	pol := policy.NewDefaultManager()
	if len(cfg.LaneMuteWindows) > 0 {
		pol = policy.WithLanePolicy(pol, policy.MuteWindows(cfg.LaneMuteWindows))
	}
	if ready := buildReadyPolicy(cfg); ready != nil {
		pol = policy.WithReadyPolicy(pol, ready)
	}
	m.pol = pol

	broker := hooks.NewPluginBroker()
	registry := hooks.NewRegistry(broker)
	m.checker = nil
	m.tracer = nil
	if err := invariants.Register(registry, invariants.Options{
		OnChecker: func(c *invariants.Checker) { m.checker = c },
	}); err != nil {
		return err
	}
	if err := trace.Register(registry, trace.Options{
		Depth:      cfg.TraceDepth,
		OnRecorder: func(r *trace.Recorder) { m.tracer = r },
	}); err != nil {
		return err
	}
	if err := registry.Load(cfg.Plugins); err != nil {
		return err
	}
	m.broker = broker
	m.registry = registry

	m.arena = NewArena(cfg.Segments, cfg.SegmentWords)
	m.occ = queue.NewOccupancy(cfg.Segments, cfg.SegmentWords)
	m.tracker = NewSegmentTracker(cfg.Segments, cfg.MetaDepth)
	m.mapper = NewSegmentMapper(cfg.Segments, cfg.SegmentWords, m.tracker, m.occ, broker)
	m.ledger = NewFrameLedger()
	m.port = NewWritePort(m.arena, m.mapper, m.occ, m.ledger, broker)

	m.lanes = make([]*Lane, cfg.Lanes)
	for i := range m.lanes {
		m.lanes[i] = NewLane(i, cfg, m.port)
	}
	m.requests = make([]bool, cfg.Lanes)
	m.arbiter = NewArbiter(cfg.Lanes, cfg.Quantum, cfg.QuantumCap, uint64(cfg.SubFrameTicks))
	m.alloc = NewFrameAllocator(m.lanes, m.mapper, m.ledger, m.port, broker, pol, NewSerialAllocator())

	if m.publisher != nil {
		m.publisher.Close()
	}
	m.publisher = m.buildPublisher(cfg)
	collector := egress.NewCollector(m.publisher, cfg.RecentFrames)
	m.recorder = egress.NewRecorder(pol, collector)
	m.stream = egress.NewStream(m.recorder)
	m.presenter = NewPresenter(m.arena, m.tracker, m.mapper, m.occ, m.stream, broker)
	m.mapper.SetReadLocker(m.presenter)
	m.port.SetReadLocker(m.presenter)

	workload := m.factory.BuildDefault(cfg)
	if workload != nil {
		workload.Reset()
	}
	m.feeder = NewFeeder(m.lanes, workload, pol, uint64(cfg.FramePeriodTicks))

	m.metrics = metric.NewRegistry()
	m.reporter = newMetricsReporter(m.metrics.CoreMetrics())
	m.reporter.Install(broker)

	return nil
}

// buildReadyPolicy combines the configured egress stall sources. Both a
// blackout window list and a random rate may be set at once.
func buildReadyPolicy(cfg *Config) policy.ReadyPolicy {
	var windows, random policy.ReadyPolicy
	if len(cfg.EgressStallWindows) > 0 {
		windows = policy.StallWindows(cfg.EgressStallWindows)
	}
	if cfg.EgressStallRate > 0 {
		random = policy.RandomStall(cfg.EgressStallRate, cfg.StallSeed)
	}
	switch {
	case windows != nil && random != nil:
		w, r := windows, random
		return policy.ReadyFunc(func(step uint64) bool {
			return w.Ready(step) && r.Ready(step)
		})
	case windows != nil:
		return windows
	case random != nil:
		return random
	}
	return nil
}

func (m *Merger) buildPublisher(cfg *Config) egress.Publisher {
	if cfg.NATSURL == "" {
		return egress.NopPublisher{}
	}
	pub, err := egress.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		GetLogger().Warnf("NATS publisher unavailable at %s: %v; frame records stay local", cfg.NATSURL, err)
		return egress.NopPublisher{}
	}
	return pub
}

func (m *Merger) initVisualizer() control.Visualizer {
	mode := m.cfg.VisualMode
	if mode == "" {
		mode = "web"
	}
	if m.cfg.Headless || mode == "none" {
		viz := control.NewNullVisualizer()
		viz.SetHeadless(true)
		return viz
	}
	viz := NewWebVisualizer(m, m.cfg.ListenAddr)
	viz.SetHeadless(false)
	return viz
}

// StepOnce advances the pipeline by one step.
func (m *Merger) StepOnce() {
	m.mu.Lock()
	m.stepLocked()
	step := m.step
	m.mu.Unlock()
	m.stepSignal.Update(step)
}

func (m *Merger) stepLocked() {
	m.step++
	step := m.step

	m.arena.BeginStep()
	m.mapper.BeginStep(step)
	m.stream.Step(step)
	m.feeder.Tick(step)
	for _, lane := range m.lanes {
		lane.Tick(step)
	}
	m.presenter.Step(step)
	m.arbiter.Tick(step)

	allocWants := m.alloc.WantsPort()
	for i, lane := range m.lanes {
		lane.Engine().Prime(step)
		m.requests[i] = lane.Engine().WantsPort()
	}
	switch g := m.arbiter.Grant(allocWants, m.requests); {
	case g == AllocatorID:
		m.broker.EmitGrant(&hooks.GrantContext{Step: step, Lane: -1, Allocator: true})
		m.alloc.DrainMarker(step)
	case g >= 0:
		m.broker.EmitGrant(&hooks.GrantContext{Step: step, Lane: g, Allocator: false})
		m.lanes[g].Engine().WriteOne(step)
	}
	if !allocWants {
		m.alloc.Round(step)
	}

	m.finalizeOne(step)

	m.reporter.SyncStep(step, stepObservation{
		quantum:        m.arbiter.QuantumLevels(),
		presenterState: m.presenter.StateCode(),
		pendingMarkers: m.alloc.PendingMarkers(),
		laneTickets:    m.laneTicketDepths(),
		delivered:      m.stream.Delivered(),
		stalls:         m.stream.Stalls(),
		bypasses:       m.arbiter.Bypasses(),
	})
}

// finalizeOne seals or discards at most one frame per step, oldest first.
// Sealing lands the metadata entry and completion mark in the same step, so
// the presenter never observes a half-published frame.
func (m *Merger) finalizeOne(step uint64) {
	serial, ok := m.ledger.SealReady()
	if !ok {
		return
	}
	res, taken := m.ledger.Take(serial)
	if !taken {
		return
	}
	if res.Sealed {
		if seg, off, mapped := m.mapper.Resolve(res.HeaderAddr); mapped {
			res.Segment = seg
			m.tracker.Record(seg, off, res.Length, res.Serial)
			m.tracker.MarkComplete(seg)
		} else {
			GetLogger().Errorf("Frame %d sealed but header %#x is unmapped", res.Serial, res.HeaderAddr)
			res.Sealed = false
			res.Reason = core.DropBrokenLink
		}
	}
	if floor, open := m.ledger.OldestHeaderAddr(); open {
		m.mapper.Prune(floor)
	}
	m.broker.EmitFrameClose(&hooks.FrameCloseContext{Step: step, Result: res})
}

func (m *Merger) laneTicketDepths() []int {
	depths := make([]int, len(m.lanes))
	for i, lane := range m.lanes {
		depths[i] = lane.TicketsQueued()
	}
	return depths
}

// Run drives the pipeline to TotalSteps, honoring pause/resume/step/reset
// commands from the visualizer between steps.
func (m *Merger) Run() {
	m.setRunning(true)
	defer m.setRunning(false)

	for m.CurrentStep() < m.totalSteps() {
		m.loop.DrainPending()

		if cfg, requested := m.takeResetRequest(); requested {
			if err := m.Reset(cfg); err != nil {
				GetLogger().Errorf("Reset rejected: %v", err)
			}
			continue
		}
		if m.Paused() && !m.takeStepPending() {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		m.StepOnce()

		if m.visualizer != nil && !m.visualizer.IsHeadless() {
			m.visualizer.PublishFrame(m.Snapshot())
			time.Sleep(DefaultVisualizationDelay)
		}
	}
}

// HandleCommand applies one control command. It always reports the run loop
// should continue; TotalSteps is the only terminator.
func (m *Merger) HandleCommand(cmd control.Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch cmd.Type {
	case control.CommandPause:
		m.isPaused = true
	case control.CommandResume:
		m.isPaused = false
	case control.CommandStep:
		if m.isPaused {
			m.stepPending = true
		}
	case control.CommandReset:
		m.resetRequested = true
		if cfg, ok := cmd.ConfigOverride.(*Config); ok {
			m.resetCfg = cfg
		} else {
			m.resetCfg = nil
		}
	}
	return true
}

// Reset rebuilds the pipeline from scratch. A nil config reruns the current
// one; a new config replaces it after validation.
func (m *Merger) Reset(newCfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := m.cfg
	if newCfg != nil {
		if err := ValidateConfig(newCfg); err != nil {
			return err
		}
		cfg = newCfg
	}
	if err := m.build(cfg); err != nil {
		return err
	}
	m.step = 0
	m.stepSignal.Rewind(0)
	m.isPaused = false
	m.stepPending = false
	GetLogger().Infof("Pipeline reset: %d lanes, %d segments of %d words, %d steps",
		cfg.Lanes, cfg.Segments, cfg.SegmentWords, cfg.TotalSteps)
	return nil
}

// Close releases external resources. The pipeline must not be stepped after.
func (m *Merger) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepSignal.Stop()
	if m.publisher != nil {
		m.publisher.Close()
		m.publisher = nil
	}
}

func (m *Merger) setRunning(v bool) {
	m.mu.Lock()
	m.isRunning = v
	if v {
		m.isPaused = false
	}
	m.mu.Unlock()
}

func (m *Merger) takeResetRequest() (*Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.resetRequested {
		return nil, false
	}
	cfg := m.resetCfg
	m.resetRequested = false
	m.resetCfg = nil
	return cfg, true
}

func (m *Merger) takeStepPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.stepPending
	m.stepPending = false
	return pending
}

func (m *Merger) totalSteps() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(m.cfg.TotalSteps)
}

// CurrentStep returns the last completed step.
func (m *Merger) CurrentStep() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.step
}

// Paused reports whether the run loop is holding.
func (m *Merger) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// Running reports whether Run is active.
func (m *Merger) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// Config returns a copy of the active configuration.
func (m *Merger) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.cfg
}

// Visualizer returns the command source frontends push into.
func (m *Merger) Visualizer() control.Visualizer {
	return m.visualizer
}

// Checker returns the loaded invariant checker, nil when not loaded.
func (m *Merger) Checker() *invariants.Checker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checker
}

// Tracer returns the loaded trace recorder, nil when not loaded.
func (m *Merger) Tracer() *trace.Recorder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracer
}

// Collector returns the egress frame collector.
func (m *Merger) Collector() *egress.Collector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recorder.Collector()
}

// Broker returns the plugin broker, for plugin listings.
func (m *Merger) Broker() *hooks.PluginBroker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.broker
}

// PluginRegistry returns the hook plugin registry.
func (m *Merger) PluginRegistry() *hooks.Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry
}

// MetricsHandler returns the Prometheus scrape handler.
func (m *Merger) MetricsHandler() http.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics.Handler()
}

// ConfigureArbiter retunes the grant weights mid-run.
func (m *Merger) ConfigureArbiter(quantum, quantumCap int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arbiter.Configure(quantum, quantumCap)
	m.cfg.Quantum = quantum
	m.cfg.QuantumCap = quantumCap
}

// Snapshot builds a full visualization frame from live component state.
func (m *Merger) Snapshot() *MergerFrame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buildFrameLocked()
}

func (m *Merger) buildFrameLocked() *MergerFrame {
	inWindow := make(map[core.SegmentID]bool)
	for _, s := range m.mapper.Window() {
		inWindow[s] = true
	}

	segments := make([]core.SegmentInfo, m.arena.Segments())
	for s := range segments {
		seg := core.SegmentID(s)
		info := core.SegmentInfo{
			ID:           s,
			MetaPending:  m.tracker.Pending(seg),
			MetaComplete: m.tracker.CompletePending(seg),
			Locked:       m.presenter.IsLocked(seg),
			ReadSegment:  seg == m.presenter.ReadSegment(),
			InWindow:     inWindow[seg],
			WordsWritten: m.occ.LiveCount(s),
			HeadSerial:   m.tracker.HeadSerial(seg),
		}
		if trail, ok := m.tracker.Trail(seg); ok {
			info.TrailValid, info.Trail = true, int(trail)
		}
		if body, ok := m.tracker.Body(seg); ok {
			info.BodyValid, info.Body = true, int(body)
		}
		segments[s] = info
	}

	masked := m.alloc.MaskedLanes()
	laneInfos := make([]core.LaneInfo, len(m.lanes))
	for i, lane := range m.lanes {
		li := lane.Info()
		li.Quantum = m.arbiter.QuantumLevel(i)
		if i < len(masked) {
			li.Masked = masked[i]
		}
		laneInfos[i] = li
	}

	serial, timestamp, open := m.alloc.CurrentFrame()
	return &MergerFrame{
		Step:         m.step,
		Paused:       m.isPaused,
		Segments:     segments,
		SegmentWords: m.arena.SegmentWords(),
		Lanes:        laneInfos,
		Allocator: core.AllocatorInfo{
			Serial:         serial,
			Timestamp:      timestamp,
			Open:           open,
			WriteCursor:    m.alloc.WriteCursor(),
			PendingMarkers: m.alloc.PendingMarkers(),
			FramesOpened:   m.alloc.FramesOpened(),
			ActiveSegment:  int(m.mapper.ActiveSegment()),
			MappedColumns:  len(m.mapper.MappedColumns()),
		},
		Arbiter:    m.arbiter.Info(),
		Presenter:  m.presenter.Info(),
		Stats:      m.collectStatsLocked(),
		Recent:     m.recentFrameInfos(),
		ConfigHash: computeConfigHash(m.cfg),
	}
}

func (m *Merger) recentFrameInfos() []core.FrameInfo {
	records := m.recorder.Collector().Recent()
	if len(records) == 0 {
		return nil
	}
	infos := make([]core.FrameInfo, len(records))
	for i, rec := range records {
		infos[i] = rec.Info()
	}
	return infos
}

// GlobalStats aggregates pipeline-wide counters for one run.
type GlobalStats struct {
	Steps           uint64            `json:"steps"`
	FramesOpened    uint64            `json:"framesOpened"`
	FramesSealed    uint64            `json:"framesSealed"`
	FramesDropped   uint64            `json:"framesDropped"`
	DropReasons     map[string]uint64 `json:"dropReasons,omitempty"`
	SealRate        float64           `json:"sealRate"` // percent of opened frames sealed
	OpenFrames      int               `json:"openFrames"`
	WordsWritten    uint64            `json:"wordsWritten"`
	FramesPresented uint64            `json:"framesPresented"`
	WordsPresented  uint64            `json:"wordsPresented"`
	EgressDelivered uint64            `json:"egressDelivered"`
	EgressStalls    uint64            `json:"egressStalls"`
	EgressFrames    uint64            `json:"egressFrames"`
	EgressInvalid   uint64            `json:"egressInvalid"`
	EgressOrphans   uint64            `json:"egressOrphans"`
	PublishErrors   uint64            `json:"publishErrors"`
	Spills          uint64            `json:"spills"`
	Flushes         uint64            `json:"flushes"`
	Warps           uint64            `json:"warps"`
	Restarts        uint64            `json:"restarts"`
	BrokenLinks     uint64            `json:"brokenLinks"`
	Bypasses        uint64            `json:"bypasses"`
	Violations      int               `json:"violations"`
}

// LaneStats is the per-lane slice of CollectStats.
type LaneStats struct {
	ID            int    `json:"id"`
	TicketsQueued int    `json:"ticketsQueued"`
	HandlesQueued int    `json:"handlesQueued"`
	StagingFree   int    `json:"stagingFree"`
	InFlight      int    `json:"inFlight"`
	Grants        uint64 `json:"grants"`
	QuantumLevel  int    `json:"quantumLevel"`
	Masked        bool   `json:"masked"`
}

// MergerStats is the full statistics snapshot.
type MergerStats struct {
	Global    *GlobalStats       `json:"global"`
	PerLane   []*LaneStats       `json:"perLane"`
	Arbiter   core.ArbiterInfo   `json:"arbiter"`
	Presenter core.PresenterInfo `json:"presenter"`
}

// CollectStats gathers counters from every component.
func (m *Merger) CollectStats() *MergerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectStatsLocked()
}

func (m *Merger) collectStatsLocked() *MergerStats {
	collector := m.recorder.Collector()
	total, invalid := collector.Counts()
	pubErrs, _ := collector.PublishErrors()

	opened := m.alloc.FramesOpened()
	sealed := m.reporter.FramesSealed()
	g := &GlobalStats{
		Steps:           m.step,
		FramesOpened:    opened,
		FramesSealed:    sealed,
		FramesDropped:   m.reporter.FramesDropped(),
		DropReasons:     m.reporter.DropReasons(),
		SealRate:        percent(sealed, opened),
		OpenFrames:      m.ledger.OpenFrames(),
		WordsWritten:    m.arena.WordsWritten(),
		FramesPresented: m.presenter.Presented(),
		WordsPresented:  m.presenter.WordsOut(),
		EgressDelivered: m.stream.Delivered(),
		EgressStalls:    m.stream.Stalls(),
		EgressFrames:    total,
		EgressInvalid:   invalid,
		EgressOrphans:   collector.Orphans(),
		PublishErrors:   pubErrs,
		Spills:          m.reporter.Spills(),
		Flushes:         m.reporter.Flushes(),
		Warps:           m.presenter.Warps(),
		Restarts:        m.presenter.Restarts(),
		BrokenLinks:     m.presenter.BrokenLinks(),
		Bypasses:        m.arbiter.Bypasses(),
	}
	if m.checker != nil {
		g.Violations = m.checker.Count()
	}

	grants := m.arbiter.LaneGrants()
	masked := m.alloc.MaskedLanes()
	perLane := make([]*LaneStats, len(m.lanes))
	for i, lane := range m.lanes {
		li := lane.Info()
		ls := &LaneStats{
			ID:            li.ID,
			TicketsQueued: li.TicketsQueued,
			HandlesQueued: li.HandlesQueued,
			StagingFree:   li.StagingFree,
			InFlight:      li.InFlight,
			QuantumLevel:  m.arbiter.QuantumLevel(i),
		}
		if i < len(grants) {
			ls.Grants = grants[i]
		}
		if i < len(masked) {
			ls.Masked = masked[i]
		}
		perLane[i] = ls
	}

	return &MergerStats{
		Global:    g,
		PerLane:   perLane,
		Arbiter:   m.arbiter.Info(),
		Presenter: m.presenter.Info(),
	}
}

func percent(a, b uint64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b) * 100.0
}
