package control

import "context"

// Visualizer defines methods for visualization implementations. It doubles
// as the command source for the run loop: interactive frontends push
// pause/resume/step/reset commands through it.
type Visualizer interface {
	SetHeadless(headless bool)
	IsHeadless() bool
	PublishFrame(frame any)
	NextCommand() (Command, bool)
	WaitCommand(ctx context.Context) (Command, bool)
}

// NullVisualizer is a no-op implementation used for headless mode.
type NullVisualizer struct {
	headless bool
}

// NewNullVisualizer creates a new NullVisualizer.
func NewNullVisualizer() *NullVisualizer {
	return &NullVisualizer{headless: true}
}

func (n *NullVisualizer) SetHeadless(headless bool) {
	n.headless = headless
}

func (n *NullVisualizer) IsHeadless() bool {
	return n.headless
}

func (n *NullVisualizer) PublishFrame(frame any) {}

func (n *NullVisualizer) NextCommand() (Command, bool) {
	return Command{Type: CommandNone}, false
}

func (n *NullVisualizer) WaitCommand(ctx context.Context) (Command, bool) {
	select {
	case <-ctx.Done():
		return Command{Type: CommandNone}, false
	default:
		return Command{Type: CommandNone}, false
	}
}
