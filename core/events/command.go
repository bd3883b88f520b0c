package events

// KindCommandProcessed identifies a spoken or typed command that went
// through dispatch.
const KindCommandProcessed Kind = "command.processed"

type CommandProcessed struct {
	Base
	Source  string `json:"source"`
	Text    string `json:"text"`
	Outcome string `json:"outcome"`
	Action  string `json:"action,omitempty"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewCommandProcessed(source, text, outcome string) CommandProcessed {
	return CommandProcessed{Base: NewBase(KindCommandProcessed), Source: source, Text: text, Outcome: outcome}
}
