package deepgram

import (
	"fmt"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/pixel-core/core/texttospeech"
)

const (
	defaultSpeakURL = "wss://api.deepgram.com/v1/speak"
	defaultVoice    = "aura-2-thalia-en"
)

var availableVoices = []string{
	"aura-2-thalia-en",
	"aura-2-andromeda-en",
	"aura-2-helena-en",
	"aura-2-apollo-en",
	"aura-2-arcas-en",
	"aura-asteria-en",
	"aura-luna-en",
	"aura-stella-en",
	"aura-orion-en",
	"aura-arcas-en",
}

func GetAvailableVoices() []string {
	return slices.Clone(availableVoices)
}

// Synthesizer speaks text with Deepgram Aura and plays the audio on a
// Player. Each Say opens its own speak websocket.
type Synthesizer struct {
	apiKey  string
	player  texttospeech.Player
	options texttospeech.SynthesizerOptions
	dialer  *websocket.Dialer
}

func NewSynthesizer(apiKey string, player texttospeech.Player, opts ...texttospeech.SynthesizerOption) (*Synthesizer, error) {
	options := texttospeech.ApplyOptions(texttospeech.SynthesizerOptions{
		Voice:    defaultVoice,
		Endpoint: defaultSpeakURL,
	}, opts...)
	if !slices.Contains(availableVoices, options.Voice) {
		return nil, fmt.Errorf("invalid voice %q", options.Voice)
	}

	return &Synthesizer{
		apiKey:  apiKey,
		player:  player,
		options: options,
		dialer:  websocket.DefaultDialer,
	}, nil
}
