package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultPauseThreshold = 800 * time.Millisecond
	defaultPreRoll        = 300 * time.Millisecond
)

// FrameSource is a microphone device that delivers fixed-size linear16
// frames. The slice returned by Read is only valid until the next Read.
type FrameSource interface {
	Start() error
	Read() ([]int16, error)
	Stop() error
	EncodingInfo() EncodingInfo
}

// ListenOptions bound a single listen. A zero Timeout waits for speech until
// the context is done, a zero PhraseLimit lets the phrase run until a pause.
type ListenOptions struct {
	Timeout     time.Duration
	PhraseLimit time.Duration
}

// Microphone turns a FrameSource into phrase captures using energy based
// voice activity detection.
//
// Time is measured in samples read, not wall clock, so a device that stalls
// does not eat into the timeout.
type Microphone struct {
	mu     sync.Mutex
	source FrameSource

	detector       activityDetector
	pauseThreshold time.Duration
	preRoll        time.Duration

	logger *slog.Logger
}

type MicrophoneOption func(*Microphone)

func WithEnergyThreshold(threshold float64) MicrophoneOption {
	return func(m *Microphone) { m.detector.energyThreshold = threshold }
}

func WithMinVoiceBandRatio(ratio float64) MicrophoneOption {
	return func(m *Microphone) { m.detector.minVoiceBandRatio = ratio }
}

// WithPauseThreshold sets how much trailing silence ends a phrase.
func WithPauseThreshold(pause time.Duration) MicrophoneOption {
	return func(m *Microphone) { m.pauseThreshold = pause }
}

// WithPreRoll sets how much audio from before the detected speech start is
// kept at the front of the capture.
func WithPreRoll(preRoll time.Duration) MicrophoneOption {
	return func(m *Microphone) { m.preRoll = preRoll }
}

func WithMicrophoneLogger(l *slog.Logger) MicrophoneOption {
	return func(m *Microphone) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewMicrophone(source FrameSource, opts ...MicrophoneOption) *Microphone {
	m := &Microphone{
		source:         source,
		detector:       newActivityDetector(),
		pauseThreshold: defaultPauseThreshold,
		preRoll:        defaultPreRoll,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnergyThreshold reports the current speech energy threshold.
func (m *Microphone) EnergyThreshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.energyThreshold
}

// AdjustForAmbientNoise listens for duration and moves the energy threshold
// toward the ambient level.
func (m *Microphone) AdjustForAmbientNoise(ctx context.Context, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := tracer.Start(ctx, "adjust for ambient noise")
	defer span.End()

	if err := m.source.Start(); err != nil {
		return fmt.Errorf("failed to start input device: %w", err)
	}
	defer m.stopSource()

	encoding := m.encodingInfo()
	var elapsed time.Duration
	for elapsed < duration {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := m.source.Read()
		if err != nil {
			return fmt.Errorf("failed to read from input device: %w", err)
		}
		if len(frame) == 0 {
			continue
		}

		frameDuration := encoding.SamplesDuration(len(frame))
		elapsed += frameDuration
		m.detector.adjust(frame, frameDuration)
	}

	m.logger.Debug("ambient noise calibrated", "energy_threshold", m.detector.energyThreshold)
	return nil
}

// Listen waits for a phrase and returns it. It returns ErrNoSpeech when no
// speech starts within opts.Timeout.
func (m *Microphone) Listen(ctx context.Context, opts ListenOptions) (*Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.source.Start(); err != nil {
		return nil, fmt.Errorf("failed to start input device: %w", err)
	}
	defer m.stopSource()

	encoding := m.encodingInfo()
	preRollSamples := encoding.DurationSamples(m.preRoll)

	var (
		waited    time.Duration
		speaking  bool
		startedAt time.Time
		phrase    []int16
		phraseLen time.Duration
		silence   time.Duration
		preRoll   []int16
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := m.source.Read()
		if err != nil {
			return nil, fmt.Errorf("failed to read from input device: %w", err)
		}
		if len(frame) == 0 {
			continue
		}

		frameDuration := encoding.SamplesDuration(len(frame))
		voiced := m.detector.isSpeech(frame, encoding.SampleRate)

		if !speaking {
			if voiced {
				speaking = true
				startedAt = time.Now().Add(-encoding.SamplesDuration(len(preRoll)))
				phrase = append(phrase, preRoll...)
				phrase = append(phrase, frame...)
				phraseLen = frameDuration
				continue
			}

			preRoll = append(preRoll, frame...)
			if excess := len(preRoll) - preRollSamples; excess > 0 {
				preRoll = preRoll[excess:]
			}

			waited += frameDuration
			if opts.Timeout > 0 && waited >= opts.Timeout {
				return nil, ErrNoSpeech
			}
			continue
		}

		phrase = append(phrase, frame...)
		phraseLen += frameDuration
		if voiced {
			silence = 0
		} else {
			silence += frameDuration
		}

		if silence >= m.pauseThreshold {
			break
		}
		if opts.PhraseLimit > 0 && phraseLen >= opts.PhraseLimit {
			break
		}
	}

	return newCapture(phrase, encoding, startedAt), nil
}

func (m *Microphone) encodingInfo() EncodingInfo {
	encoding := m.source.EncodingInfo()
	if encoding.IsZero() {
		return GetDefaultEncodingInfo()
	}
	return encoding
}

func (m *Microphone) stopSource() {
	if err := m.source.Stop(); err != nil {
		m.logger.Warn("failed to stop input device", "error", err)
	}
}
