package policy

import "math/rand"

// Manager answers the runtime policy questions the pipeline asks every step.
type Manager interface {
	EgressReady(step uint64) bool
	LaneActive(lane int, step uint64) bool
}

// ReadyPolicy decides whether the downstream consumer accepts words.
type ReadyPolicy interface {
	Ready(step uint64) bool
}

type ReadyFunc func(step uint64) bool

func (f ReadyFunc) Ready(step uint64) bool {
	return f(step)
}

// LanePolicy decides whether an input lane is producing data.
type LanePolicy interface {
	Active(lane int, step uint64) bool
}

type LaneFunc func(lane int, step uint64) bool

func (f LaneFunc) Active(lane int, step uint64) bool {
	return f(lane, step)
}

type manager struct {
	ready ReadyPolicy
	lane  LanePolicy
}

// NewDefaultManager creates a manager with permissive defaults: the egress
// is always ready and every lane is active.
func NewDefaultManager() Manager {
	return &manager{
		ready: &alwaysReady{},
		lane:  &allLanesActive{},
	}
}

// WithReadyPolicy returns a copy of the manager using the provided policy.
func WithReadyPolicy(m Manager, rp ReadyPolicy) Manager {
	base := asManager(m)
	base.ready = rp
	return base
}

// WithLanePolicy returns a copy of the manager using the provided policy.
func WithLanePolicy(m Manager, lp LanePolicy) Manager {
	base := asManager(m)
	base.lane = lp
	return base
}

func (m *manager) EgressReady(step uint64) bool {
	if m.ready == nil {
		return true
	}
	return m.ready.Ready(step)
}

func (m *manager) LaneActive(lane int, step uint64) bool {
	if m.lane == nil {
		return true
	}
	return m.lane.Active(lane, step)
}

type alwaysReady struct{}

func (r *alwaysReady) Ready(_ uint64) bool {
	return true
}

type allLanesActive struct{}

func (a *allLanesActive) Active(_ int, _ uint64) bool {
	return true
}

func asManager(m Manager) *manager {
	if concrete, ok := m.(*manager); ok {
		return &manager{
			ready: concrete.ready,
			lane:  concrete.lane,
		}
	}
	return &manager{
		ready: &alwaysReady{},
		lane:  &allLanesActive{},
	}
}

// Window is a half-open step interval [Start, End).
type Window struct {
	Start uint64 `yaml:"start" json:"start"`
	End   uint64 `yaml:"end" json:"end"`
}

// Contains reports whether the step falls inside the window.
func (w Window) Contains(step uint64) bool {
	return step >= w.Start && step < w.End
}

type stallWindows struct {
	windows []Window
}

// StallWindows makes the egress refuse words during each listed window.
func StallWindows(windows []Window) ReadyPolicy {
	out := make([]Window, len(windows))
	copy(out, windows)
	return &stallWindows{windows: out}
}

func (s *stallWindows) Ready(step uint64) bool {
	for _, w := range s.windows {
		if w.Contains(step) {
			return false
		}
	}
	return true
}

type randomStall struct {
	rate float64
	rng  *rand.Rand
}

// RandomStall makes the egress refuse words with the given probability.
// The same seed reproduces the same stall pattern.
func RandomStall(rate float64, seed int64) ReadyPolicy {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &randomStall{
		rate: rate,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (r *randomStall) Ready(_ uint64) bool {
	return r.rng.Float64() >= r.rate
}

type muteWindows struct {
	windows map[int][]Window
}

// MuteWindows silences a lane during each of its listed windows. Lanes
// without an entry stay active.
func MuteWindows(windows map[int][]Window) LanePolicy {
	out := make(map[int][]Window, len(windows))
	for lane, ws := range windows {
		cp := make([]Window, len(ws))
		copy(cp, ws)
		out[lane] = cp
	}
	return &muteWindows{windows: out}
}

func (m *muteWindows) Active(lane int, step uint64) bool {
	for _, w := range m.windows[lane] {
		if w.Contains(step) {
			return false
		}
	}
	return true
}
