package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/pixel-core/core/audio"
	"github.com/koscakluka/pixel-core/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en-US"

	// chunksPerSecond controls how a capture is split into websocket
	// messages.
	chunksPerSecond = 5

	typeErrorResponse api.TypeResponse = "Error"
)

// Recognizer transcribes finished captures through Deepgram's live listen
// websocket. Each capture gets its own connection which is closed once the
// final results have arrived.
type Recognizer struct {
	apiKey  string
	options speechtotext.RecognizerOptions
	dialer  *websocket.Dialer
}

func NewRecognizer(apiKey string, opts ...speechtotext.RecognizerOption) *Recognizer {
	return &Recognizer{
		apiKey: apiKey,
		options: speechtotext.ApplyOptions(speechtotext.RecognizerOptions{
			Model:    defaultModel,
			Language: defaultLanguage,
			Endpoint: defaultListenURL,
		}, opts...),
		dialer: websocket.DefaultDialer,
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
		attribute.Int64("capture.duration_ms", capture.Duration.Milliseconds()),
	)

	listenURL, err := r.listenURL(capture.Encoding)
	if err != nil {
		return "", err
	}

	conn, resp, err := r.dialer.DialContext(ctx, listenURL, http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: failed to open socket connection to deepgram: %w", speechtotext.ErrServiceUnavailable, err)
	}
	defer conn.Close()

	results := newTranscriptCollector()
	go results.readMessages(conn)

	if err := sendCapture(conn, capture); err != nil {
		return "", fmt.Errorf("%w: %w", speechtotext.ErrServiceUnavailable, err)
	}

	select {
	case <-results.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	transcript, readErr := results.result()
	if transcript != "" {
		return transcript, nil
	}
	if readErr != nil {
		return "", fmt.Errorf("%w: %w", speechtotext.ErrServiceUnavailable, readErr)
	}
	return "", speechtotext.ErrNotUnderstood
}

func (r *Recognizer) listenURL(encoding audio.EncodingInfo) (string, error) {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	if err := checkEncoding(encoding); err != nil {
		return "", fmt.Errorf("invalid encoding: %w", err)
	}

	listenURL, err := url.Parse(r.options.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram endpoint: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", r.options.Model)
	queryParams.Set("language", r.options.Language)
	queryParams.Set("smart_format", "true")
	listenURL.RawQuery = queryParams.Encode()
	return listenURL.String(), nil
}

func checkEncoding(encoding audio.EncodingInfo) error {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return fmt.Errorf("unsupported sample rate for %s encoding", encoding.Format.Name())
		}
	default:
		return fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}
	return nil
}

func sendCapture(conn *websocket.Conn, capture *audio.Capture) error {
	data := capture.Bytes()
	chunkSize := capture.Encoding.BytesPerSecond() / chunksPerSecond
	if chunkSize <= 0 {
		chunkSize = len(data)
	}

	for offset := 0; offset < len(data); offset += chunkSize {
		chunk := data[offset:min(offset+chunkSize, len(data))]
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return fmt.Errorf("failed to write to deepgram: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

type transcriptCollector struct {
	mu       sync.Mutex
	segments []string
	err      error
	done     chan struct{}
}

func newTranscriptCollector() *transcriptCollector {
	return &transcriptCollector{done: make(chan struct{})}
}

// readMessages collects final transcripts until deepgram closes the stream.
func (c *transcriptCollector) readMessages(conn *websocket.Conn) {
	defer close(c.done)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.mu.Lock()
				c.err = fmt.Errorf("failed to read deepgram message: %w", err)
				c.mu.Unlock()
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		if err := c.processMessage(msg); err != nil {
			logger.Warn("Failed to process deepgram message", "error", err)
		}
	}
}

func (c *transcriptCollector) processMessage(msg []byte) error {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return fmt.Errorf("failed to unmarshal deepgram message: %w", err)
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			return fmt.Errorf("failed to unmarshal deepgram results: %w", err)
		}
		if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
			return nil
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if transcript == "" {
			return nil
		}
		c.mu.Lock()
		c.segments = append(c.segments, transcript)
		c.mu.Unlock()

	case typeErrorResponse:
		c.mu.Lock()
		c.err = errors.New(string(msg))
		c.mu.Unlock()
	}
	return nil
}

func (c *transcriptCollector) result() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.segments, " "), c.err
}
