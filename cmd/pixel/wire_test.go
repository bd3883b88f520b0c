package main

import (
	"testing"
	"time"

	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/koscakluka/pixel-core/internal/config"
)

func TestAssistantOptionsWithoutDevices(t *testing.T) {
	cfg := config.Default()
	cfg.Assistant.Greet = false
	cfg.Assistant.Timings.Settle = config.Duration(time.Millisecond)
	cfg.Assistant.Sites = []assistant.SiteAlias{{Alias: "news", URL: "https://news.ycombinator.com"}}

	pixel := assistant.NewVoiceAssistant(assistantOptions(&cfg, &components{}, nil)...)
	defer pixel.Shutdown(time.Second)

	if err := pixel.Start(t.Context()); err == nil {
		t.Fatalf("expected start without a microphone to fail")
	}
	reply := pixel.SubmitTypedCommand(t.Context(), "tell me a joke")
	if reply.Err == nil {
		t.Fatalf("expected forwarding without a backend to fail")
	}
}

func TestBuildBackendNone(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Provider = "none"

	parts := &components{}
	if err := parts.buildBackend(t.Context(), &cfg); err != nil || parts.backend != nil {
		t.Fatalf("expected no backend, got %v %v", parts.backend, err)
	}
}

func TestBuildBackendKeepsHistoryFile(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Provider = "groq"
	cfg.Keys.Groq = "test-key"
	cfg.Backend.HistoryFile = t.TempDir() + "/history.json"

	parts := &components{}
	if err := parts.buildBackend(t.Context(), &cfg); err != nil {
		t.Fatalf("expected backend, got %v", err)
	}
	if parts.backend == nil {
		t.Fatalf("expected groq backend")
	}
}

func TestBuildRecognizerWithoutWhisperTag(t *testing.T) {
	cfg := config.Default()
	cfg.Recognition.Provider = "whisper"
	cfg.Recognition.WhisperModel = "missing.bin"

	parts := &components{}
	if err := parts.buildRecognizer(&cfg); err == nil {
		t.Fatalf("expected whisper recognizer to fail without a model")
	}
}

func TestPhrasesFromConfig(t *testing.T) {
	got := phrases(config.PhrasesConfig{
		Apology:        "OOPS",
		ServiceApology: "THE CLOUD IS DOWN",
		Greetings:      []string{"HI"},
	})

	if got.ServiceApology != "THE CLOUD IS DOWN" || got.Apology != "OOPS" {
		t.Fatalf("expected configured apologies, got %+v", got)
	}
	if len(got.Greetings) != 1 || got.Greetings[0] != "HI" {
		t.Fatalf("expected configured greetings, got %v", got.Greetings)
	}
}
