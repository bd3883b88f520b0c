package assistant

import "log/slog"

type AssistantOption func(*VoiceAssistant)

func WithMicrophone(microphone Microphone) AssistantOption {
	return func(a *VoiceAssistant) { a.microphone = microphone }
}

func WithRecognizer(recognizer Recognizer) AssistantOption {
	return func(a *VoiceAssistant) { a.recognizer = recognizer }
}

// WithSynthesizer sets the speech device. Without one spoken lines are only
// logged.
func WithSynthesizer(synthesizer Synthesizer) AssistantOption {
	return func(a *VoiceAssistant) { a.synthesizer = synthesizer }
}

func WithActions(actions Actions) AssistantOption {
	return func(a *VoiceAssistant) { a.actions = actions }
}

func WithBackend(backend Backend) AssistantOption {
	return func(a *VoiceAssistant) { a.backend = backend }
}

func WithWakePhrases(phrases ...string) AssistantOption {
	return func(a *VoiceAssistant) { a.wakePhrases = phrases }
}

// WithTimings replaces the loop timings. Zero fields keep their defaults.
func WithTimings(timings Timings) AssistantOption {
	return func(a *VoiceAssistant) {
		defaults := DefaultTimings()
		a.timings = Timings{
			WakeTimeout:        orDefault(timings.WakeTimeout, defaults.WakeTimeout),
			WakePhraseLimit:    orDefault(timings.WakePhraseLimit, defaults.WakePhraseLimit),
			CommandTimeout:     orDefault(timings.CommandTimeout, defaults.CommandTimeout),
			CommandPhraseLimit: orDefault(timings.CommandPhraseLimit, defaults.CommandPhraseLimit),
			Backoff:            orDefault(timings.Backoff, defaults.Backoff),
			Settle:             orDefault(timings.Settle, defaults.Settle),
			Poll:               orDefault(timings.Poll, defaults.Poll),
			SpeechWait:         orDefault(timings.SpeechWait, defaults.SpeechWait),
		}
	}
}

// WithPhrases replaces the assistant's own lines. Empty fields keep their
// defaults.
func WithPhrases(phrases Phrases) AssistantOption {
	return func(a *VoiceAssistant) {
		defaults := DefaultPhrases()
		a.phrases = Phrases{
			Acknowledge:    orDefault(phrases.Acknowledge, defaults.Acknowledge),
			NotHeard:       orDefault(phrases.NotHeard, defaults.NotHeard),
			NotUnderstood:  orDefault(phrases.NotUnderstood, defaults.NotUnderstood),
			Apology:        orDefault(phrases.Apology, defaults.Apology),
			ServiceApology: orDefault(phrases.ServiceApology, defaults.ServiceApology),
			Greetings:      defaults.Greetings,
		}
		if len(phrases.Greetings) > 0 {
			a.phrases.Greetings = phrases.Greetings
		}
	}
}

func WithDispatcherOptions(opts ...DispatcherOption) AssistantOption {
	return func(a *VoiceAssistant) { a.dispatcherOpts = append(a.dispatcherOpts, opts...) }
}

func WithAudioInputOptions(opts ...AudioInputOption) AssistantOption {
	return func(a *VoiceAssistant) { a.audioOpts = append(a.audioOpts, opts...) }
}

func WithSpeechQueueOptions(opts ...SpeechQueueOption) AssistantOption {
	return func(a *VoiceAssistant) { a.speechOpts = append(a.speechOpts, opts...) }
}

// WithExchangeCallback is called after every processed command, spoken or
// typed.
func WithExchangeCallback(callback func(Exchange)) AssistantOption {
	return func(a *VoiceAssistant) { a.onExchange = callback }
}

func WithLogger(l *slog.Logger) AssistantOption {
	return func(a *VoiceAssistant) {
		if l != nil {
			a.logger = l
		}
	}
}

func orDefault[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}
	return value
}
