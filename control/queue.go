package control

import "context"

// CommandQueue abstracts command delivery to the run loop.
type CommandQueue interface {
	Enqueue(cmd Command) bool
	TryDequeue() (Command, bool)
	Next(ctx context.Context) (Command, bool)
}

type channelCommandQueue struct {
	ch chan Command
}

// NewChannelQueue creates a buffered in-process command queue. Enqueue
// drops commands once the buffer is full rather than blocking a caller.
func NewChannelQueue(buffer int) CommandQueue {
	return &channelCommandQueue{ch: make(chan Command, buffer)}
}

func (q *channelCommandQueue) Enqueue(cmd Command) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

func (q *channelCommandQueue) TryDequeue() (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return Command{Type: CommandNone}, false
	}
}

func (q *channelCommandQueue) Next(ctx context.Context) (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	case <-ctx.Done():
		return Command{Type: CommandNone}, false
	}
}
