package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/pixel-core/core/audio"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultCalibrationDuration = time.Second

// Microphone captures phrases from the input device.
type Microphone interface {
	AdjustForAmbientNoise(ctx context.Context, duration time.Duration) error
	Listen(ctx context.Context, opts audio.ListenOptions) (*audio.Capture, error)
}

// Recognizer turns a capture into text. It reports ErrRecognitionFailure
// when nothing intelligible was said and ErrServiceUnavailable when the
// service could not be used.
type Recognizer interface {
	Recognize(ctx context.Context, capture *audio.Capture) (string, error)
}

// AudioInputGate is the only path to the microphone. At most one calibration
// or listen holds the device at any time.
type AudioInputGate struct {
	mu         sync.Mutex
	microphone Microphone
	recognizer Recognizer

	calibrateOnce       sync.Once
	calibrateErr        error
	calibrationDuration time.Duration

	archiveFs  afero.Fs
	archiveDir string

	logger *slog.Logger
}

type AudioInputOption func(*AudioInputGate)

func WithCalibrationDuration(d time.Duration) AudioInputOption {
	return func(g *AudioInputGate) { g.calibrationDuration = d }
}

// WithCaptureArchive writes every capture as a WAV file into dir on fs.
func WithCaptureArchive(fs afero.Fs, dir string) AudioInputOption {
	return func(g *AudioInputGate) {
		g.archiveFs = fs
		g.archiveDir = dir
	}
}

func WithAudioInputLogger(l *slog.Logger) AudioInputOption {
	return func(g *AudioInputGate) {
		if l != nil {
			g.logger = l
		}
	}
}

func NewAudioInputGate(microphone Microphone, recognizer Recognizer, opts ...AudioInputOption) *AudioInputGate {
	g := &AudioInputGate{
		microphone:          microphone,
		recognizer:          recognizer,
		calibrationDuration: defaultCalibrationDuration,
		logger:              logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Calibrate adjusts the microphone to ambient noise. Only the first call does
// any work; concurrent callers wait for it and every caller gets its result.
func (g *AudioInputGate) Calibrate(ctx context.Context) error {
	g.calibrateOnce.Do(func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		if err := g.microphone.AdjustForAmbientNoise(ctx, g.calibrationDuration); err != nil {
			g.calibrateErr = fmt.Errorf("failed to calibrate microphone: %w", err)
			g.logger.Warn("Microphone calibration failed, using default threshold", "error", err)
		}
	})
	return g.calibrateErr
}

// ListenShort is the wake probe capture.
func (g *AudioInputGate) ListenShort(ctx context.Context, timeout, phraseLimit time.Duration) (*audio.Capture, error) {
	return g.listen(ctx, "wake probe", timeout, phraseLimit)
}

// ListenCommand captures a full command after the wake phrase.
func (g *AudioInputGate) ListenCommand(ctx context.Context, timeout, phraseLimit time.Duration) (*audio.Capture, error) {
	return g.listen(ctx, "command", timeout, phraseLimit)
}

func (g *AudioInputGate) listen(ctx context.Context, mode string, timeout, phraseLimit time.Duration) (capture *audio.Capture, err error) {
	// Calibration failure is logged once and listening carries on.
	_ = g.Calibrate(ctx)

	ctx, span := tracer.Start(ctx, "listen")
	defer func() {
		if err != nil && !errors.Is(err, ErrCaptureTimeout) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "listen failed")
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("listen.mode", mode))

	g.mu.Lock()
	defer g.mu.Unlock()

	capture, err = g.microphone.Listen(ctx, audio.ListenOptions{Timeout: timeout, PhraseLimit: phraseLimit})
	if err != nil {
		return nil, fmt.Errorf("%s capture: %w", mode, err)
	}
	if capture.IsEmpty() {
		return nil, fmt.Errorf("%s capture: %w", mode, ErrCaptureTimeout)
	}

	span.SetAttributes(attribute.Int64("capture.duration_ms", capture.Duration.Milliseconds()))
	g.archive(capture)
	return capture, nil
}

// Recognize runs outside the device lock so the next listen can start while
// the previous capture is being recognized.
func (g *AudioInputGate) Recognize(ctx context.Context, capture *audio.Capture) (string, error) {
	text, err := g.recognizer.Recognize(ctx, capture)
	switch {
	case err == nil:
	case errors.Is(err, ErrRecognitionFailure), errors.Is(err, ErrServiceUnavailable):
		return "", err
	case ctx.Err() != nil:
		return "", ctx.Err()
	default:
		return "", fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrRecognitionFailure
	}
	return text, nil
}

func (g *AudioInputGate) archive(capture *audio.Capture) {
	if g.archiveFs == nil {
		return
	}

	name := path.Join(g.archiveDir, capture.StartedAt.Format("20060102-150405.000")+"-"+capture.ID+".wav")
	if err := g.writeArchive(name, capture); err != nil {
		g.logger.Warn("Failed to archive capture", "file", name, "error", err)
	}
}

func (g *AudioInputGate) writeArchive(name string, capture *audio.Capture) error {
	if err := g.archiveFs.MkdirAll(g.archiveDir, 0o755); err != nil {
		return err
	}
	file, err := g.archiveFs.Create(name)
	if err != nil {
		return err
	}
	return errors.Join(capture.WriteWAV(file), file.Close())
}
