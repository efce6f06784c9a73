package domain

// CommandType classifies what the user wants to do.
type CommandType int

const (
	CommandUnknown CommandType = iota
	CommandHelp
	CommandStatus
	CommandShow
	CommandQuit

	// Play mode.
	CommandStart
	CommandPause
	CommandResume
	CommandStop
	CommandComplete
	CommandSkip
	CommandStartTimer

	// Edit mode.
	CommandGoto
	CommandAdd
	CommandAppend
	CommandConnect
	CommandDisconnect
	CommandDelete
	CommandRename
	CommandInstruct
	CommandDuration
	CommandExtend
	CommandSave
)

// String returns a human-readable command type.
func (c CommandType) String() string {
	if name, ok := commandNamesByType[c]; ok {
		return name
	}
	return "unknown"
}

var commandNamesByType = map[CommandType]string{
	CommandHelp:       "help",
	CommandStatus:     "status",
	CommandShow:       "show",
	CommandQuit:       "quit",
	CommandStart:      "start",
	CommandPause:      "pause",
	CommandResume:     "resume",
	CommandStop:       "stop",
	CommandComplete:   "complete",
	CommandSkip:       "skip",
	CommandStartTimer: "start_timer",
	CommandGoto:       "goto",
	CommandAdd:        "add",
	CommandAppend:     "append",
	CommandConnect:    "connect",
	CommandDisconnect: "disconnect",
	CommandDelete:     "delete",
	CommandRename:     "rename",
	CommandInstruct:   "instruct",
	CommandDuration:   "duration",
	CommandExtend:     "extend",
	CommandSave:       "save",
}

// Command is a parsed user action.
type Command struct {
	Type CommandType
	Arg  string // first argument, e.g. a step number or title
	Rest string // optional second argument, e.g. an instruction
}

// PlayCommand reports whether the command drives play mode.
func (c CommandType) PlayCommand() bool {
	return c >= CommandStart && c <= CommandStartTimer
}

// EditCommand reports whether the command mutates the recipe.
func (c CommandType) EditCommand() bool {
	return c >= CommandGoto && c <= CommandSave
}
