package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/pixel-core/core/audio"
	"github.com/koscakluka/pixel-core/core/texttospeech"
)

func TestSayPlaysSynthesizedAudio(t *testing.T) {
	server := newFakeSpeakServer(t, [][]byte{{1, 2}, {3, 4, 5}}, `{"type":"Flushed","sequence_id":0}`)
	defer server.Close()

	player := &recordingPlayer{}
	synth, err := NewSynthesizer("secret", player, texttospeech.WithEndpoint(server.speakURL()))
	if err != nil {
		t.Fatalf("expected synthesizer, got %v", err)
	}

	if err := synth.Say(context.Background(), "HELLO"); err != nil {
		t.Fatalf("expected speech to succeed, got %v", err)
	}

	if got := player.played(); string(got) != string([]byte{1, 2, 3, 4, 5}) {
		t.Fatalf("expected audio chunks in order, got %v", got)
	}
	if server.authorization() != "token secret" {
		t.Fatalf("expected token auth, got %q", server.authorization())
	}
	query, _ := url.ParseQuery(server.query())
	if query.Get("model") != defaultVoice || query.Get("encoding") != "linear16" || query.Get("sample_rate") != "16000" {
		t.Fatalf("unexpected query %v", query)
	}
	if texts := server.texts(); len(texts) != 1 || texts[0] != "HELLO" {
		t.Fatalf("expected text to be sent once, got %v", texts)
	}
}

func TestSayReportsDeepgramError(t *testing.T) {
	server := newFakeSpeakServer(t, nil, `{"type":"Error","description":"bad voice"}`)
	defer server.Close()

	synth, _ := NewSynthesizer("secret", &recordingPlayer{}, texttospeech.WithEndpoint(server.speakURL()))
	if err := synth.Say(context.Background(), "HELLO"); err == nil || !strings.Contains(err.Error(), "bad voice") {
		t.Fatalf("expected deepgram error, got %v", err)
	}
}

func TestSayUnreachableServiceIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	synth, _ := NewSynthesizer("wrong", &recordingPlayer{},
		texttospeech.WithEndpoint("ws"+strings.TrimPrefix(server.URL, "http")+"/v1/speak"))
	if err := synth.Say(context.Background(), "HELLO"); !errors.Is(err, texttospeech.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestSayWithoutPlayer(t *testing.T) {
	synth, _ := NewSynthesizer("secret", nil)
	if err := synth.Say(context.Background(), "HELLO"); !errors.Is(err, texttospeech.ErrNoPlayer) {
		t.Fatalf("expected ErrNoPlayer, got %v", err)
	}
}

func TestNewSynthesizerRejectsUnknownVoice(t *testing.T) {
	if _, err := NewSynthesizer("secret", nil, texttospeech.WithVoice("robot")); err == nil {
		t.Fatalf("expected unknown voice to be rejected")
	}
}

type recordingPlayer struct {
	mu    sync.Mutex
	audio []byte
}

func (p *recordingPlayer) Play(_ context.Context, pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audio = append(p.audio, pcm...)
	return nil
}

func (p *recordingPlayer) EncodingInfo() audio.EncodingInfo { return audio.GetDefaultEncodingInfo() }

func (p *recordingPlayer) played() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.audio...)
}

type fakeSpeakServer struct {
	*httptest.Server

	mu       sync.Mutex
	auth     string
	rawQuery string
	spoken   []string
}

// newFakeSpeakServer answers a Flush with the given audio chunks followed by
// reply.
func newFakeSpeakServer(t *testing.T, chunks [][]byte, reply string) *fakeSpeakServer {
	t.Helper()

	s := &fakeSpeakServer{}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.auth = r.Header.Get("Authorization")
		s.rawQuery = r.URL.RawQuery
		s.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			var msg speakMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Type {
			case "Speak":
				s.mu.Lock()
				s.spoken = append(s.spoken, msg.Text)
				s.mu.Unlock()
			case "Flush":
				for _, chunk := range chunks {
					if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
						return
					}
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
					return
				}
			case "Close":
				return
			}
		}
	}))
	return s
}

func (s *fakeSpeakServer) speakURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/v1/speak"
}

func (s *fakeSpeakServer) authorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth
}

func (s *fakeSpeakServer) query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawQuery
}

func (s *fakeSpeakServer) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}
