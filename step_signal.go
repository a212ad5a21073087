package main

import "sync"

// StepSignal publishes the highest completed pipeline step under a condition
// variable. The run loop raises it after every step; observers block in
// WaitUntil to synchronize with a live run instead of polling CurrentStep.
type StepSignal struct {
	mu      sync.Mutex
	cond    *sync.Cond
	step    uint64
	stopped bool
}

// NewStepSignal creates a signal with no completed steps.
func NewStepSignal() *StepSignal {
	ss := &StepSignal{}
	ss.cond = sync.NewCond(&ss.mu)
	return ss
}

// Update raises the completed step and wakes all waiters when the value grows.
func (ss *StepSignal) Update(step uint64) {
	ss.mu.Lock()
	if step > ss.step {
		ss.step = step
		ss.cond.Broadcast()
	}
	ss.mu.Unlock()
}

// Rewind lowers the completed step after a pipeline reset. Waiters keep
// waiting until the new run reaches their target.
func (ss *StepSignal) Rewind(step uint64) {
	ss.mu.Lock()
	if step < ss.step {
		ss.step = step
	}
	ss.mu.Unlock()
}

// Stop releases every waiter. Called at teardown so nothing stays blocked on
// a pipeline that will not step again.
func (ss *StepSignal) Stop() {
	ss.mu.Lock()
	ss.stopped = true
	ss.cond.Broadcast()
	ss.mu.Unlock()
}

// WaitUntil blocks until the completed step reaches target or the signal is
// stopped. It reports whether the target was reached.
func (ss *StepSignal) WaitUntil(target uint64) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for ss.step < target && !ss.stopped {
		ss.cond.Wait()
	}
	return ss.step >= target
}

// Current returns the highest completed step.
func (ss *StepSignal) Current() uint64 {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.step
}
