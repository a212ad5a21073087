package main

import "github.com/ordaq/framering/core"

// Requester identifiers on the arena write port. Lanes use their index.
const (
	AllocatorID = -1 // allocator override, never charged
	NoGrant     = -2 // port idle this step
)

// Arbiter shares the single arena write port between the allocator and the
// per-lane copy engines. The allocator always wins and is never charged.
// Among lanes it runs deficit round robin: every sub-frame tick each lane
// accrues Quantum units, saturating at QuantumCap, and pays one unit per
// granted write. A granted lane keeps the port across steps until it stops
// requesting or runs out of quantum, then priority rotates to the lane
// after it. When every requesting lane is out of quantum the gate is
// bypassed (ungated, uncharged grant) so the port never deadlocks.
type Arbiter struct {
	lanes      int
	quantum    int
	quantumCap int
	subTicks   uint64

	deficit  []int
	hold     int // lane holding the grant, -1 when none
	priority int // search start for the next fresh grant

	bypasses    uint64
	laneGrants  []uint64
	allocGrants uint64
}

// NewArbiter creates an arbiter for the given lane count and quantum
// settings. subFrameTicks is the replenish period in steps.
func NewArbiter(lanes, quantum, quantumCap int, subFrameTicks uint64) *Arbiter {
	return &Arbiter{
		lanes:      lanes,
		quantum:    quantum,
		quantumCap: quantumCap,
		subTicks:   subFrameTicks,
		deficit:    make([]int, lanes),
		hold:       -1,
		laneGrants: make([]uint64, lanes),
	}
}

// Tick replenishes lane quanta on sub-frame boundaries. Call once per step
// before Grant.
func (ar *Arbiter) Tick(step uint64) {
	if ar == nil || ar.subTicks == 0 {
		return
	}
	if step%ar.subTicks != 0 {
		return
	}
	for i := range ar.deficit {
		ar.deficit[i] += ar.quantum
		if ar.deficit[i] > ar.quantumCap {
			ar.deficit[i] = ar.quantumCap
		}
	}
}

// Grant picks this step's writer. allocatorWants preempts everything and
// leaves the lane hold undisturbed; otherwise requests[i] marks lane i as
// wanting the port. Returns a lane index, AllocatorID, or NoGrant.
func (ar *Arbiter) Grant(allocatorWants bool, requests []bool) int {
	if ar == nil {
		return NoGrant
	}
	if allocatorWants {
		ar.allocGrants++
		return AllocatorID
	}

	requesting := func(lane int) bool {
		return lane >= 0 && lane < len(requests) && requests[lane]
	}

	// A holder keeps the port while it still wants it and can pay.
	if ar.hold >= 0 {
		if requesting(ar.hold) && ar.deficit[ar.hold] > 0 {
			ar.deficit[ar.hold]--
			ar.laneGrants[ar.hold]++
			return ar.hold
		}
		ar.hold = -1
	}

	anyRequest := false
	for lane := 0; lane < ar.lanes; lane++ {
		if requesting(lane) {
			anyRequest = true
			break
		}
	}
	if !anyRequest {
		return NoGrant
	}

	// Fresh grant: first eligible lane in rotation order.
	for i := 0; i < ar.lanes; i++ {
		lane := (ar.priority + i) % ar.lanes
		if requesting(lane) && ar.deficit[lane] > 0 {
			ar.deficit[lane]--
			ar.laneGrants[lane]++
			ar.hold = lane
			ar.priority = (lane + 1) % ar.lanes
			return lane
		}
	}

	// Every requester is out of quantum: bypass the gate, uncharged.
	for i := 0; i < ar.lanes; i++ {
		lane := (ar.priority + i) % ar.lanes
		if requesting(lane) {
			ar.bypasses++
			ar.laneGrants[lane]++
			ar.hold = lane
			ar.priority = (lane + 1) % ar.lanes
			return lane
		}
	}
	return NoGrant
}

// Configure replaces the quantum settings, clamping deficits to the new
// cap. Used by the debug surface between steps.
func (ar *Arbiter) Configure(quantum, quantumCap int) {
	if ar == nil || quantum <= 0 {
		return
	}
	if quantumCap < quantum {
		quantumCap = quantum
	}
	ar.quantum = quantum
	ar.quantumCap = quantumCap
	for i := range ar.deficit {
		if ar.deficit[i] > quantumCap {
			ar.deficit[i] = quantumCap
		}
	}
}

// QuantumLevels returns a copy of the per-lane deficit counters.
func (ar *Arbiter) QuantumLevels() []int {
	if ar == nil {
		return nil
	}
	out := make([]int, len(ar.deficit))
	copy(out, ar.deficit)
	return out
}

// QuantumLevel returns one lane's deficit counter.
func (ar *Arbiter) QuantumLevel(lane int) int {
	if ar == nil || lane < 0 || lane >= len(ar.deficit) {
		return 0
	}
	return ar.deficit[lane]
}

// Hold returns the lane currently holding the grant, -1 when none.
func (ar *Arbiter) Hold() int {
	if ar == nil {
		return -1
	}
	return ar.hold
}

// Bypasses returns how often quantum gating was bypassed.
func (ar *Arbiter) Bypasses() uint64 {
	if ar == nil {
		return 0
	}
	return ar.bypasses
}

// LaneGrants returns a copy of the per-lane grant counts.
func (ar *Arbiter) LaneGrants() []uint64 {
	if ar == nil {
		return nil
	}
	out := make([]uint64, len(ar.laneGrants))
	copy(out, ar.laneGrants)
	return out
}

// AllocatorGrants returns how many steps the allocator took the port.
func (ar *Arbiter) AllocatorGrants() uint64 {
	if ar == nil {
		return 0
	}
	return ar.allocGrants
}

// Info returns a snapshot for the debug surface.
func (ar *Arbiter) Info() core.ArbiterInfo {
	if ar == nil {
		return core.ArbiterInfo{Hold: -1}
	}
	return core.ArbiterInfo{
		Hold:     ar.hold,
		Priority: ar.priority,
		Quantum:  ar.QuantumLevels(),
		Bypasses: ar.bypasses,
	}
}

// Reset clears all arbitration state.
func (ar *Arbiter) Reset() {
	if ar == nil {
		return
	}
	for i := range ar.deficit {
		ar.deficit[i] = 0
	}
	for i := range ar.laneGrants {
		ar.laneGrants[i] = 0
	}
	ar.hold = -1
	ar.priority = 0
	ar.bypasses = 0
	ar.allocGrants = 0
}
