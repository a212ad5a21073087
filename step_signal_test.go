package main

import "testing"

func TestStepSignalMonotonicUpdate(t *testing.T) {
	ss := NewStepSignal()
	ss.Update(3)
	ss.Update(2)
	if got := ss.Current(); got != 3 {
		t.Fatalf("Current() = %d after updates 3,2; want 3", got)
	}
	if !ss.WaitUntil(3) {
		t.Fatalf("WaitUntil(3) reported not reached with signal at 3")
	}

	done := make(chan bool)
	go func() { done <- ss.WaitUntil(5) }()
	ss.Update(5)
	if !<-done {
		t.Fatalf("waiter for step 5 not released by Update(5)")
	}
}

func TestStepSignalRewindAndStop(t *testing.T) {
	ss := NewStepSignal()
	ss.Update(10)
	ss.Rewind(0)
	if got := ss.Current(); got != 0 {
		t.Fatalf("Current() = %d after Rewind(0); want 0", got)
	}

	done := make(chan bool)
	go func() { done <- ss.WaitUntil(4) }()
	ss.Stop()
	if <-done {
		t.Fatalf("stopped waiter reported its target as reached")
	}
	if ss.WaitUntil(100) {
		t.Fatalf("WaitUntil after Stop reported target reached")
	}
}
