package main

import (
	"fmt"

	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/queue"
)

// CopyEngine drains a lane's handle queue into the arena, one word per
// granted step. Drop handles never touch the port: Prime retires them up
// front, returning their staging credit, so the request line only rises
// for real copy work.
type CopyEngine struct {
	lane    *Lane
	port    *WritePort
	handles *queue.Ring[core.Handle]
	done    int // words of the head handle already driven
}

// NewCopyEngine creates the engine for one lane.
func NewCopyEngine(lane *Lane, port *WritePort) *CopyEngine {
	return &CopyEngine{
		lane: lane,
		port: port,
		handles: queue.NewRing[core.Handle](
			fmt.Sprintf("lane%d_handles", lane.ID()),
			queue.UnlimitedCapacity, nil, queue.RingHooks[core.Handle]{}),
	}
}

// Enqueue accepts a handle from the allocator.
func (e *CopyEngine) Enqueue(h core.Handle, step uint64) {
	if e == nil {
		return
	}
	e.handles.Push(h, step)
}

// Prime retires drop handles and empty copies at the queue head. Call
// once per step before sampling WantsPort.
func (e *CopyEngine) Prime(step uint64) {
	if e == nil {
		return
	}
	for {
		h, ok := e.handles.Peek()
		if !ok {
			return
		}
		if h.Kind == core.HandleCopy && h.Length > 0 {
			return
		}
		e.lane.returnStaging(h.Length)
		e.handles.Pop(step)
	}
}

// WantsPort reports whether the engine has copy work needing a grant.
func (e *CopyEngine) WantsPort() bool {
	if e == nil {
		return false
	}
	h, ok := e.handles.Peek()
	return ok && h.Kind == core.HandleCopy && h.Length > 0
}

// WriteOne drives one staged word through the port on a granted step.
// When the handle's last word drains, its staging credit goes back to the
// feeder and the engine moves to the next handle.
func (e *CopyEngine) WriteOne(step uint64) {
	if e == nil {
		return
	}
	h, ok := e.handles.Peek()
	if !ok || h.Kind != core.HandleCopy || h.Length <= 0 {
		return
	}
	word := e.lane.StagingWord(h.SrcOffset + uint64(e.done))
	e.port.Write(step, h.Serial, h.Dst+uint64(e.done), word, h.Lane, false)
	e.done++
	if e.done >= h.Length {
		e.lane.returnStaging(h.Length)
		e.handles.Pop(step)
		e.done = 0
	}
}

// Pending returns how many handles are queued, the active one included.
func (e *CopyEngine) Pending() int {
	if e == nil {
		return 0
	}
	return e.handles.Len()
}

// Reset drops all queued handles and progress.
func (e *CopyEngine) Reset() {
	if e == nil {
		return
	}
	e.handles.Clear()
	e.done = 0
}
