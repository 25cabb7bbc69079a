package ir

// Defaults applied to entries that do not name them.
const (
	DefaultEvent    = "setup"
	DefaultPriority = int64(0)
)

// Reserved argument keys shared by every action.
const (
	KeyAction    = "action"
	KeyEvent     = "event"
	KeyPriority  = "priority"
	KeyValidator = "validator"
)

// ActionDescriptor is a registered action, immutable once stored.
// Args holds the full resolved entry, including action, event and priority.
type ActionDescriptor struct {
	Key      string   `json:"key"`
	Event    string   `json:"event"`
	Priority int64    `json:"priority"`
	Action   string   `json:"action"`
	Args     IRObject `json:"args"`
}

// ApplyDefaults fills event and priority when absent or null.
// The input is not modified.
func ApplyDefaults(args IRObject) IRObject {
	out := args.Clone()
	if IsNull(out[KeyEvent]) {
		out[KeyEvent] = IRString(DefaultEvent)
	}
	if IsNull(out[KeyPriority]) {
		out[KeyPriority] = IRInt(DefaultPriority)
	}
	return out
}
