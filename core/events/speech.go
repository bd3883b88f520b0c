package events

const (
	// KindSpeechQueued identifies text accepted by the speech output.
	KindSpeechQueued Kind = "assistant_speech.queued"
	// KindSpeechSpoken identifies text that finished playing.
	KindSpeechSpoken Kind = "assistant_speech.spoken"
)

type SpeechQueued struct {
	Base
	ID   string `json:"id"`
	Text string `json:"text"`
}

func NewSpeechQueued(id, text string) SpeechQueued {
	return SpeechQueued{Base: NewBase(KindSpeechQueued), ID: id, Text: text}
}

type SpeechSpoken struct {
	Base
	ID   string `json:"id"`
	Text string `json:"text"`
}

func NewSpeechSpoken(id, text string) SpeechSpoken {
	return SpeechSpoken{Base: NewBase(KindSpeechSpoken), ID: id, Text: text}
}
