package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/pixel-core/core/audio"
	"github.com/koscakluka/pixel-core/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type serverMessage struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	ErrMsg      string `json:"err_msg"`
}

var (
	flushMsg = speakMessage{Type: "Flush"}
	closeMsg = speakMessage{Type: "Close"}
)

// Say synthesizes text and plays it, returning once playback is done.
func (s *Synthesizer) Say(ctx context.Context, text string) (err error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "speech synthesis failed")
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("voice", s.options.Voice), attribute.Int("text.length", len(text)))

	if s.player == nil {
		return texttospeech.ErrNoPlayer
	}

	pcm, err := s.synthesize(ctx, text)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("audio.bytes", len(pcm)))
	if len(pcm) == 0 {
		return nil
	}

	if err := s.player.Play(ctx, pcm); err != nil {
		return fmt.Errorf("failed to play speech: %w", err)
	}
	return nil
}

// synthesize sends text with a flush and collects audio until deepgram
// confirms the flush.
func (s *Synthesizer) synthesize(ctx context.Context, text string) ([]byte, error) {
	speakURL, err := s.speakURL(s.player.EncodingInfo())
	if err != nil {
		return nil, err
	}

	conn, resp, err := s.dialer.DialContext(ctx, speakURL, http.Header{"Authorization": {"token " + s.apiKey}})
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: failed to open socket connection to deepgram: %w", texttospeech.ErrServiceUnavailable, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := errors.Join(
		conn.WriteJSON(speakMessage{Type: "Speak", Text: text}),
		conn.WriteJSON(flushMsg),
	); err != nil {
		return nil, fmt.Errorf("%w: failed to send text to deepgram: %w", texttospeech.ErrServiceUnavailable, err)
	}

	var pcm []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: failed to read deepgram message: %w", texttospeech.ErrServiceUnavailable, err)
		}

		if msgType == websocket.BinaryMessage {
			pcm = append(pcm, msg...)
			continue
		}

		var parsed serverMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			logger.Debug("Ignoring malformed deepgram message", "error", err)
			continue
		}
		switch parsed.Type {
		case "Flushed":
			if err := conn.WriteJSON(closeMsg); err != nil {
				logger.Debug("Failed to close deepgram stream", "error", err)
			}
			return pcm, nil
		case "Warning":
			logger.Warn("Deepgram speak warning", "description", parsed.Description)
		case "Error":
			return nil, fmt.Errorf("deepgram speak error: %s", firstNonEmpty(parsed.Description, parsed.ErrMsg))
		}
	}
}

func (s *Synthesizer) speakURL(encoding audio.EncodingInfo) (string, error) {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	if encoding.Format != audio.EncodingLinear16 {
		return "", fmt.Errorf("unsupported playback encoding %q", encoding.Format.Name())
	}

	speakURL, err := url.Parse(s.options.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram endpoint: %w", err)
	}

	query := speakURL.Query()
	query.Set("encoding", encoding.Format.Name())
	query.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	query.Set("model", s.options.Voice)
	query.Set("container", "none")
	speakURL.RawQuery = query.Encode()
	return speakURL.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "unknown error"
}
