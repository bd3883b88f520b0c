package texttospeech

import (
	"context"
	"errors"

	"github.com/koscakluka/pixel-core/core/audio"
)

var (
	// ErrServiceUnavailable means the speech service could not be reached.
	ErrServiceUnavailable = errors.New("speech synthesis service unavailable")
	ErrNoPlayer           = errors.New("no audio player configured")
)

// Player plays raw PCM in the player's encoding and returns once it has been
// heard, or ctx is done.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
	EncodingInfo() audio.EncodingInfo
}

// SynthesizerOptions are shared by the synthesizer adapters. Each adapter
// picks its own defaults for the fields left empty.
type SynthesizerOptions struct {
	Voice    string
	Endpoint string
	// Rate is the speaking rate in words per minute for engines that
	// support it.
	Rate int
}

type SynthesizerOption func(*SynthesizerOptions)

func WithVoice(voice string) SynthesizerOption {
	return func(o *SynthesizerOptions) { o.Voice = voice }
}

func WithEndpoint(endpoint string) SynthesizerOption {
	return func(o *SynthesizerOptions) { o.Endpoint = endpoint }
}

func WithRate(rate int) SynthesizerOption {
	return func(o *SynthesizerOptions) { o.Rate = rate }
}

// ApplyOptions applies opts on top of defaults.
func ApplyOptions(defaults SynthesizerOptions, opts ...SynthesizerOption) SynthesizerOptions {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}
