package events

const (
	// KindStateChanged identifies a transition of the interaction state.
	KindStateChanged Kind = "interaction.state_changed"
	// KindWakeDetected identifies a probe that contained the wake phrase.
	KindWakeDetected Kind = "interaction.wake_detected"
)

// StateChanged carries the names of the states on either side of a
// transition, e.g. "idle" and "wake_detected".
type StateChanged struct {
	Base
	From string `json:"from"`
	To   string `json:"to"`
}

func NewStateChanged(from, to string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to}
}

// WakeDetected carries the recognized probe and the command spoken in the
// same breath, if any.
type WakeDetected struct {
	Base
	Transcript string `json:"transcript"`
	Inline     string `json:"inline,omitempty"`
}

func NewWakeDetected(transcript, inline string) WakeDetected {
	return WakeDetected{Base: NewBase(KindWakeDetected), Transcript: transcript, Inline: inline}
}
