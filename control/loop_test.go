package control

import (
	"context"
	"testing"
	"time"
)

type scriptedSource struct {
	pending []Command
}

func (s *scriptedSource) NextCommand() (Command, bool) {
	if len(s.pending) == 0 {
		return Command{Type: CommandNone}, false
	}
	cmd := s.pending[0]
	s.pending = s.pending[1:]
	return cmd, true
}

func (s *scriptedSource) WaitCommand(ctx context.Context) (Command, bool) {
	return s.NextCommand()
}

func TestDrainPendingDispatchesAll(t *testing.T) {
	src := &scriptedSource{pending: []Command{
		{Type: CommandPause},
		{Type: CommandStep},
		{Type: CommandResume},
	}}

	seen := make([]CommandType, 0, 3)
	loop := NewLoop(src, HandlerFunc(func(cmd Command) bool {
		seen = append(seen, cmd.Type)
		return true
	}))

	if !loop.DrainPending() {
		t.Fatalf("expected loop to continue")
	}
	if len(seen) != 3 || seen[0] != CommandPause || seen[1] != CommandStep || seen[2] != CommandResume {
		t.Fatalf("unexpected dispatch order: %v", seen)
	}
}

func TestDrainPendingStopsOnHandler(t *testing.T) {
	src := &scriptedSource{pending: []Command{
		{Type: CommandReset},
		{Type: CommandStep},
	}}

	calls := 0
	loop := NewLoop(src, HandlerFunc(func(cmd Command) bool {
		calls++
		return false
	}))

	if loop.DrainPending() {
		t.Fatalf("expected handler to stop the loop")
	}
	if calls != 1 {
		t.Fatalf("expected one dispatch, got %d", calls)
	}
	if len(src.pending) != 1 {
		t.Fatalf("remaining commands should stay queued, got %d", len(src.pending))
	}
}

func TestWaitAndHandleWithQueue(t *testing.T) {
	q := NewChannelQueue(4)
	if !q.Enqueue(Command{Type: CommandResume}) {
		t.Fatalf("enqueue into empty queue failed")
	}

	var got Command
	loop := NewLoop(queueSource{q}, HandlerFunc(func(cmd Command) bool {
		got = cmd
		return true
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !loop.WaitAndHandle(ctx) {
		t.Fatalf("expected loop to continue")
	}
	if got.Type != CommandResume {
		t.Fatalf("expected resume command, got %q", got.Type)
	}
}

func TestWaitAndHandleCancelled(t *testing.T) {
	q := NewChannelQueue(1)
	loop := NewLoop(queueSource{q}, HandlerFunc(func(cmd Command) bool {
		t.Fatalf("no command should be dispatched")
		return false
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !loop.WaitAndHandle(ctx) {
		t.Fatalf("cancelled wait should not stop the loop")
	}
}

func TestNilLoopSafe(t *testing.T) {
	var loop *Loop
	if !loop.DrainPending() {
		t.Fatalf("nil loop should report continue")
	}
	if !loop.WaitAndHandle(context.Background()) {
		t.Fatalf("nil loop should report continue")
	}
}

// queueSource adapts a CommandQueue into a Source for tests.
type queueSource struct {
	q CommandQueue
}

func (s queueSource) NextCommand() (Command, bool) {
	return s.q.TryDequeue()
}

func (s queueSource) WaitCommand(ctx context.Context) (Command, bool) {
	return s.q.Next(ctx)
}
