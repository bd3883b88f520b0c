package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/koscakluka/pixel-core/core/audio"
	"github.com/koscakluka/pixel-core/core/speechtotext"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultModel = goopenai.Whisper1
	// GroqEndpoint serves the same transcription API as OpenAI.
	GroqEndpoint = "https://api.groq.com/openai/v1"
	// GroqModel is the Whisper model hosted by Groq.
	GroqModel = "whisper-large-v3-turbo"
)

// Recognizer transcribes captures with an OpenAI compatible
// /audio/transcriptions endpoint. Captures are encoded as WAV in an in-memory
// filesystem before upload.
type Recognizer struct {
	client  *goopenai.Client
	options speechtotext.RecognizerOptions
	fs      afero.Fs
}

func NewRecognizer(apiKey string, opts ...speechtotext.RecognizerOption) *Recognizer {
	options := speechtotext.ApplyOptions(speechtotext.RecognizerOptions{Model: defaultModel}, opts...)

	config := goopenai.DefaultConfig(apiKey)
	if options.Endpoint != "" {
		config.BaseURL = options.Endpoint
	}
	config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	return &Recognizer{
		client:  goopenai.NewClientWithConfig(config),
		options: options,
		fs:      afero.NewMemMapFs(),
	}
}

func (r *Recognizer) Recognize(ctx context.Context, capture *audio.Capture) (transcript string, err error) {
	ctx, span := tracer.Start(ctx, "recognize speech")
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
	span.SetAttributes(
		attribute.String("capture.id", capture.ID),
		attribute.String("model", r.options.Model),
	)

	name := path.Join("/captures", capture.ID+".wav")
	file, err := r.writeCapture(name, capture)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
		_ = r.fs.Remove(name)
	}()

	resp, err := r.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    r.options.Model,
		FilePath: path.Base(name),
		Reader:   file,
		Language: r.options.Language,
		Format:   goopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classifyError(err)
	}

	transcript = strings.TrimSpace(resp.Text)
	if transcript == "" {
		return "", speechtotext.ErrNotUnderstood
	}
	return transcript, nil
}

func (r *Recognizer) writeCapture(name string, capture *audio.Capture) (afero.File, error) {
	if err := r.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return nil, fmt.Errorf("failed to prepare capture directory: %w", err)
	}

	file, err := r.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	if err := capture.WriteWAV(file); err != nil {
		_ = file.Close()
		return nil, err
	}
	if _, err := file.Seek(0, 0); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to rewind capture file: %w", err)
	}
	return file, nil
}

// classifyError maps every request failure onto ErrServiceUnavailable while
// keeping the original error in the chain.
func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: transcription request rejected with status %d: %w",
			speechtotext.ErrServiceUnavailable, apiErr.HTTPStatusCode, err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: transcription request failed with status %d: %w",
			speechtotext.ErrServiceUnavailable, reqErr.HTTPStatusCode, err)
	}

	return fmt.Errorf("%w: %w", speechtotext.ErrServiceUnavailable, err)
}
