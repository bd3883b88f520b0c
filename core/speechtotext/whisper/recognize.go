//go:build whisper

// Package whisper recognizes captures offline with a local whisper.cpp
// model. It needs cgo and the whisper.cpp library, so it is only built with
// the "whisper" build tag.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/koscakluka/pixel-core/core/audio"
	"github.com/koscakluka/pixel-core/core/speechtotext"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const scopeName = "github.com/koscakluka/pixel-core/core/speechtotext/whisper"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

type Recognizer struct {
	// whisper contexts are not safe for concurrent use and the model is
	// CPU bound, so recognitions run one at a time.
	mu       sync.Mutex
	model    whisper.Model
	language string
}

// NewRecognizer loads the model file at modelPath. Close releases it.
func NewRecognizer(modelPath string, opts ...speechtotext.RecognizerOption) (*Recognizer, error) {
	options := speechtotext.ApplyOptions(speechtotext.RecognizerOptions{Language: "en"}, opts...)

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}
	return &Recognizer{model: model, language: options.Language}, nil
}

func (r *Recognizer) Recognize(ctx context.Context, capture *audio.Capture) (transcript string, err error) {
	_, span := tracer.Start(ctx, "recognize speech")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "recognition failed")
		}
		span.End()
	}()

	if capture.IsEmpty() {
		return "", speechtotext.ErrNotUnderstood
	}
	if capture.Encoding.SampleRate != whisper.SampleRate {
		return "", fmt.Errorf("whisper needs %dHz audio, got %dHz", whisper.SampleRate, capture.Encoding.SampleRate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wctx, err := r.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("%w: failed to create whisper context: %w", speechtotext.ErrServiceUnavailable, err)
	}
	if err := wctx.SetLanguage(r.language); err != nil {
		logger.Warn("Failed to set whisper language", "language", r.language, "error", err)
	}

	if err := wctx.Process(capture.Float32(), nil); err != nil {
		return "", fmt.Errorf("%w: whisper processing failed: %w", speechtotext.ErrServiceUnavailable, err)
	}

	segments, err := collectSegments(wctx)
	if err != nil {
		return "", err
	}
	transcript = strings.Join(segments, " ")
	if transcript == "" {
		return "", speechtotext.ErrNotUnderstood
	}
	return transcript, nil
}

func (r *Recognizer) Close() error {
	return r.model.Close()
}

// collectSegments drops annotations such as "[BLANK_AUDIO]" or "(wind)" and
// repeated segments, which whisper emits on silence.
func collectSegments(wctx whisper.Context) ([]string, error) {
	seen := make(map[string]bool)
	var segments []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			return segments, nil
		} else if err != nil {
			return nil, fmt.Errorf("failed to read whisper segment: %w", err)
		}

		text := strings.TrimSpace(segment.Text)
		if text == "" || isAnnotation(text) || seen[text] {
			continue
		}
		seen[text] = true
		segments = append(segments, text)
	}
}

func isAnnotation(text string) bool {
	first, last := text[0], text[len(text)-1]
	return first == '(' || first == '[' || last == ')' || last == ']'
}
