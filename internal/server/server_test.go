package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/koscakluka/pixel-core/core/events"
)

type fakeAssistant struct {
	mu          sync.Mutex
	state       assistant.State
	muted       bool
	commands    []string
	spoken      []string
	cleared     int
	reply       assistant.Reply
	subscribers map[int]func(events.Event)
	nextID      int
}

func newFakeAssistant() *fakeAssistant {
	return &fakeAssistant{state: assistant.StateIdle, subscribers: map[int]func(events.Event){}}
}

func (f *fakeAssistant) State() assistant.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAssistant) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakeAssistant) MuteBackgroundListening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.muted {
		return false
	}
	f.muted, f.state = true, assistant.StateSuspended
	return true
}

func (f *fakeAssistant) Resume() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.muted {
		return false
	}
	f.muted, f.state = false, assistant.StateIdle
	return true
}

func (f *fakeAssistant) ToggleMute() bool {
	if f.Muted() {
		f.Resume()
		return false
	}
	f.MuteBackgroundListening()
	return true
}

func (f *fakeAssistant) SubmitTypedCommand(_ context.Context, text string) assistant.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, text)
	return f.reply
}

func (f *fakeAssistant) Speak(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return false
	}
	f.spoken = append(f.spoken, text)
	return true
}

func (f *fakeAssistant) ClearHistory() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func (f *fakeAssistant) Subscribe(fn func(events.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subscribers, id)
	}
}

func (f *fakeAssistant) emit(event events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.subscribers {
		fn(event)
	}
}

func (f *fakeAssistant) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestStateAndMuteControls(t *testing.T) {
	fake := newFakeAssistant()
	handler := New(fake).Routes()

	rec := do(t, handler, http.MethodGet, "/state", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"idle"`) {
		t.Fatalf("expected idle state, got %d %s", rec.Code, rec.Body)
	}

	rec = do(t, handler, http.MethodPost, "/mute", "")
	if !strings.Contains(rec.Body.String(), `"changed":true`) || !strings.Contains(rec.Body.String(), `"state":"suspended"`) {
		t.Fatalf("expected mute to suspend, got %s", rec.Body)
	}
	rec = do(t, handler, http.MethodPost, "/mute", "")
	if !strings.Contains(rec.Body.String(), `"changed":false`) {
		t.Fatalf("expected second mute to change nothing, got %s", rec.Body)
	}

	rec = do(t, handler, http.MethodPost, "/toggle", "")
	if !strings.Contains(rec.Body.String(), `"muted":false`) {
		t.Fatalf("expected toggle to resume, got %s", rec.Body)
	}
	rec = do(t, handler, http.MethodPost, "/resume", "")
	if !strings.Contains(rec.Body.String(), `"changed":false`) {
		t.Fatalf("expected resume while listening to change nothing, got %s", rec.Body)
	}
}

func TestCommandEndpoint(t *testing.T) {
	fake := newFakeAssistant()
	fake.reply = assistant.Reply{
		Text:    "HELLO",
		Outcome: assistant.CommandOutcome{Kind: assistant.OutcomeForwardToBackend, Text: "hi there"},
	}
	handler := New(fake).Routes()

	rec := do(t, handler, http.MethodPost, "/command", `{"text":"hi there"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		Reply   string `json:"reply"`
		Outcome struct {
			Kind string `json:"kind"`
		} `json:"outcome"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON body, got %v", err)
	}
	if resp.Reply != "HELLO" || resp.Outcome.Kind != "forward_to_backend" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(fake.commands) != 1 || fake.commands[0] != "hi there" {
		t.Fatalf("expected command to be submitted, got %v", fake.commands)
	}
}

func TestCommandEndpointErrors(t *testing.T) {
	fake := newFakeAssistant()
	handler := New(fake).Routes()

	if rec := do(t, handler, http.MethodPost, "/command", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without text, got %d", rec.Code)
	}

	fake.reply = assistant.Reply{Err: assistant.ErrBusy}
	if rec := do(t, handler, http.MethodPost, "/command", `{"text":"volume up"}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", rec.Code)
	}

	fake.reply = assistant.Reply{Err: assistant.ErrClosed}
	if rec := do(t, handler, http.MethodPost, "/command", `{"text":"volume up"}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after shutdown, got %d", rec.Code)
	}
}

func TestSpeakAndClearHistory(t *testing.T) {
	fake := newFakeAssistant()
	handler := New(fake).Routes()

	if rec := do(t, handler, http.MethodPost, "/speak", `{"text":"HELLO"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodPost, "/speak", `{"text":"   "}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank text, got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodDelete, "/history", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(fake.spoken) != 1 || fake.cleared != 1 {
		t.Fatalf("expected one spoken line and one clear, got %v %d", fake.spoken, fake.cleared)
	}
}

func TestEventStream(t *testing.T) {
	fake := newFakeAssistant()
	srv := httptest.NewServer(New(fake).Routes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if err != nil {
		t.Fatalf("expected websocket connection, got %v", err)
	}
	defer conn.Close()

	read := func() events.Envelope {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var envelope struct {
			Kind events.Kind     `json:"kind"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&envelope); err != nil {
			t.Fatalf("expected event, got %v", err)
		}
		return events.Envelope{Kind: envelope.Kind}
	}

	if first := read(); first.Kind != events.KindStateChanged {
		t.Fatalf("expected current state first, got %s", first.Kind)
	}

	waitFor(t, func() bool { return fake.subscriberCount() == 1 })
	fake.emit(events.NewWakeDetected("hey pixel", ""))
	if next := read(); next.Kind != events.KindWakeDetected {
		t.Fatalf("expected wake event, got %s", next.Kind)
	}

	conn.Close()
	waitFor(t, func() bool { return fake.subscriberCount() == 0 })
}

func TestLocalOrigin(t *testing.T) {
	tests := map[string]bool{
		"":                      true,
		"http://localhost:5173": true,
		"http://127.0.0.1:8080": true,
		"https://example.com":   false,
	}
	for origin, allowed := range tests {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := localOrigin(req); got != allowed {
			t.Fatalf("origin %q: expected %v, got %v", origin, allowed, got)
		}
	}
}
