package control

import "context"

// Source provides control commands from an external producer. Visualizer
// satisfies it.
type Source interface {
	NextCommand() (Command, bool)
	WaitCommand(context.Context) (Command, bool)
}

// Handler consumes control commands and reports whether the run loop
// should keep going.
type Handler interface {
	HandleCommand(Command) bool
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(Command) bool

// HandleCommand calls the underlying function.
func (f HandlerFunc) HandleCommand(cmd Command) bool {
	if f == nil {
		return true
	}
	return f(cmd)
}

// Loop drains and dispatches control commands.
type Loop struct {
	source  Source
	handler Handler
}

// NewLoop creates a command loop with the given source and handler.
func NewLoop(source Source, handler Handler) *Loop {
	return &Loop{
		source:  source,
		handler: handler,
	}
}

// DrainPending pulls all currently available commands from the source until
// exhaustion or handler termination.
func (l *Loop) DrainPending() bool {
	if l == nil || l.handler == nil {
		return true
	}
	if l.source == nil {
		return true
	}
	for {
		cmd, ok := l.source.NextCommand()
		if !ok {
			return true
		}
		if !l.handler.HandleCommand(cmd) {
			return false
		}
	}
}

// WaitAndHandle blocks until a command is available (or context
// cancellation) and dispatches it.
func (l *Loop) WaitAndHandle(ctx context.Context) bool {
	if l == nil || l.handler == nil {
		return true
	}
	if l.source == nil {
		return true
	}
	cmd, ok := l.source.WaitCommand(ctx)
	if !ok {
		return true
	}
	return l.handler.HandleCommand(cmd)
}
