package main

import (
	"math/rand"
	"time"
)

// LaneFrame is one lane's contribution to a workload frame: the hit count
// of each group the lane emits, in emission order. An empty Groups slice
// means the lane participates with a bare start/end pair.
type LaneFrame struct {
	Groups []int
}

// Workload produces the per-lane content of successive frames.
type Workload interface {
	// NextFrame returns the per-lane contributions for the given frame
	// serial. Returns false once the workload is exhausted.
	NextFrame(serial uint64) ([]LaneFrame, bool)

	// Reset restores the workload to its initial state (called on
	// simulation reset).
	Reset()
}

// ProbabilityWorkload emits groups at random: each of the maxGroups slots
// per lane fires with the configured probability and carries between 1 and
// maxHits hit words. The same seed reproduces the same frame sequence,
// including after Reset.
type ProbabilityWorkload struct {
	lanes     int
	prob      float64
	maxGroups int
	maxHits   int
	seed      int64
	rng       *rand.Rand
}

// NewProbabilityWorkload creates a seeded random workload. A zero seed is
// replaced with a time-based one captured at construction, so Reset still
// replays the identical sequence within a run.
func NewProbabilityWorkload(lanes int, prob float64, maxGroups, maxHits int, seed int64) *ProbabilityWorkload {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxGroups < 1 {
		maxGroups = 1
	}
	if maxHits < 1 {
		maxHits = 1
	}
	return &ProbabilityWorkload{
		lanes:     lanes,
		prob:      prob,
		maxGroups: maxGroups,
		maxHits:   maxHits,
		seed:      seed,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (w *ProbabilityWorkload) NextFrame(_ uint64) ([]LaneFrame, bool) {
	frames := make([]LaneFrame, w.lanes)
	for lane := range frames {
		for g := 0; g < w.maxGroups; g++ {
			if w.rng.Float64() >= w.prob {
				continue
			}
			hits := 1 + w.rng.Intn(w.maxHits)
			frames[lane].Groups = append(frames[lane].Groups, hits)
		}
	}
	return frames, true
}

func (w *ProbabilityWorkload) Reset() {
	w.rng = rand.New(rand.NewSource(w.seed))
}

// Seed returns the seed actually in use (useful when it was time-based).
func (w *ProbabilityWorkload) Seed() int64 {
	return w.seed
}

// ScheduleWorkload replays an explicit script: frame serial -> lane ->
// group hit counts. Serials missing from the script produce empty frames
// until the script runs out; consumed entries are restored by Reset.
type ScheduleWorkload struct {
	lanes    int
	schedule map[uint64]map[int][]int
	original map[uint64]map[int][]int
}

// NewScheduleWorkload creates a deterministic scripted workload. The
// schedule is deep-copied so later mutation of the caller's map cannot
// change replays.
func NewScheduleWorkload(lanes int, schedule map[uint64]map[int][]int) *ScheduleWorkload {
	return &ScheduleWorkload{
		lanes:    lanes,
		schedule: copySchedule(schedule),
		original: copySchedule(schedule),
	}
}

func copySchedule(schedule map[uint64]map[int][]int) map[uint64]map[int][]int {
	out := make(map[uint64]map[int][]int, len(schedule))
	for serial, laneMap := range schedule {
		out[serial] = make(map[int][]int, len(laneMap))
		for lane, groups := range laneMap {
			groupsCopy := make([]int, len(groups))
			copy(groupsCopy, groups)
			out[serial][lane] = groupsCopy
		}
	}
	return out
}

func (w *ScheduleWorkload) NextFrame(serial uint64) ([]LaneFrame, bool) {
	if len(w.schedule) == 0 {
		return nil, false
	}
	frames := make([]LaneFrame, w.lanes)
	laneMap, scripted := w.schedule[serial]
	if !scripted {
		return frames, true
	}
	for lane, groups := range laneMap {
		if lane < 0 || lane >= w.lanes {
			continue
		}
		groupsCopy := make([]int, len(groups))
		copy(groupsCopy, groups)
		frames[lane].Groups = groupsCopy
	}
	delete(w.schedule, serial)
	return frames, true
}

func (w *ScheduleWorkload) Reset() {
	w.schedule = copySchedule(w.original)
}

// Remaining returns the count of scripted frames not yet consumed.
func (w *ScheduleWorkload) Remaining() int {
	return len(w.schedule)
}
