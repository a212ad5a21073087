package control

// CommandType represents types of control instructions from UI or API.
type CommandType string

const (
	CommandNone   CommandType = "none"
	CommandPause  CommandType = "pause"
	CommandResume CommandType = "resume"
	CommandReset  CommandType = "reset"
	CommandStep   CommandType = "step"
)

// Command captures a control instruction for the merger run loop.
type Command struct {
	Type           CommandType
	ConfigOverride any
}
