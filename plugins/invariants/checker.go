package invariants

import (
	"fmt"
	"sync"

	"github.com/ordaq/framering/hooks"
)

// Violation is one observed break of a pipeline rule.
type Violation struct {
	Step   uint64 `json:"step"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// Checker watches pipeline hooks and records rule violations. The rules it
// can see from the hook stream alone: one grant per step, one arena write
// per step, frames close only after they opened, and spill links never
// point a segment at itself.
type Checker struct {
	mu sync.Mutex

	grantStep     uint64
	grantsInStep  int
	writeStep     uint64
	writesInStep  int
	openSerials   map[uint64]bool
	lastCloseStep uint64

	violations []Violation
}

// New creates an empty checker.
func New() *Checker {
	return &Checker{
		openSerials: make(map[uint64]bool),
	}
}

// Install subscribes the checker to the broker.
func (c *Checker) Install(b *hooks.PluginBroker) {
	if c == nil || b == nil {
		return
	}
	b.RegisterGrant(c.onGrant)
	b.RegisterWrite(c.onWrite)
	b.RegisterFrameOpen(c.onFrameOpen)
	b.RegisterFrameClose(c.onFrameClose)
	b.RegisterSpill(c.onSpill)
}

func (c *Checker) onGrant(ctx *hooks.GrantContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Step == c.grantStep {
		c.grantsInStep++
	} else {
		c.grantStep = ctx.Step
		c.grantsInStep = 1
	}
	if c.grantsInStep > 1 {
		c.recordLocked(ctx.Step, "single-grant",
			fmt.Sprintf("%d grants in one step", c.grantsInStep))
	}
	return nil
}

func (c *Checker) onWrite(ctx *hooks.WriteContext) error {
	if ctx.Skipped {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Step == c.writeStep {
		c.writesInStep++
	} else {
		c.writeStep = ctx.Step
		c.writesInStep = 1
	}
	if c.writesInStep > 1 {
		c.recordLocked(ctx.Step, "single-write",
			fmt.Sprintf("%d arena writes in one step", c.writesInStep))
	}
	return nil
}

func (c *Checker) onFrameOpen(ctx *hooks.FrameOpenContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openSerials[ctx.Serial] {
		c.recordLocked(ctx.Step, "open-once",
			fmt.Sprintf("serial %d opened twice", ctx.Serial))
	}
	c.openSerials[ctx.Serial] = true
	return nil
}

func (c *Checker) onFrameClose(ctx *hooks.FrameCloseContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	serial := ctx.Result.Serial
	if !c.openSerials[serial] {
		c.recordLocked(ctx.Step, "close-after-open",
			fmt.Sprintf("serial %d closed without opening", serial))
	}
	delete(c.openSerials, serial)
	c.lastCloseStep = ctx.Step
	return nil
}

func (c *Checker) onSpill(ctx *hooks.SpillContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Head == ctx.Trail {
		c.recordLocked(ctx.Step, "spill-distinct",
			fmt.Sprintf("segment %d spills into itself", ctx.Head))
	}
	return nil
}

func (c *Checker) recordLocked(step uint64, rule, detail string) {
	c.violations = append(c.violations, Violation{
		Step:   step,
		Rule:   rule,
		Detail: detail,
	})
}

// Violations returns a copy of all recorded violations.
func (c *Checker) Violations() []Violation {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Violation, len(c.violations))
	copy(out, c.violations)
	return out
}

// Count returns the number of recorded violations.
func (c *Checker) Count() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.violations)
}
