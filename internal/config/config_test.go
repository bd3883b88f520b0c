package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "pixel.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearKeys(t *testing.T) {
	t.Helper()
	for _, name := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "GROQ_API_KEY", "DEEPGRAM_API_KEY", "PIXEL_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, `
assistant:
  wake_phrases: ["hello computer"]
  timings:
    command_timeout: 8s
    settle: 250ms
  phrases:
    service_apology: THE CLOUD IS DOWN
  sites:
    - alias: news
      url: https://news.ycombinator.com
recognition:
  provider: whisper
  whisper_model: models/ggml-base.en.bin
speech:
  provider: system
  rate: 150
backend:
  provider: none
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if len(cfg.Assistant.WakePhrases) != 1 || cfg.Assistant.WakePhrases[0] != "hello computer" {
		t.Fatalf("expected wake phrases from file, got %v", cfg.Assistant.WakePhrases)
	}
	if cfg.Assistant.Timings.CommandTimeout.Std() != 8*time.Second || cfg.Assistant.Timings.Settle.Std() != 250*time.Millisecond {
		t.Fatalf("expected durations from file, got %+v", cfg.Assistant.Timings)
	}
	if cfg.Assistant.Phrases.ServiceApology != "THE CLOUD IS DOWN" {
		t.Fatalf("expected service apology from file, got %q", cfg.Assistant.Phrases.ServiceApology)
	}
	if len(cfg.Assistant.Sites) != 1 || cfg.Assistant.Sites[0].URL != "https://news.ycombinator.com" {
		t.Fatalf("expected extra site, got %+v", cfg.Assistant.Sites)
	}
	if cfg.Audio.Driver != "portaudio" || cfg.Server.Address != "127.0.0.1:8765" || !cfg.Assistant.Greet {
		t.Fatalf("expected untouched defaults, got %+v", cfg)
	}
}

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	clearKeys(t)
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("DEEPGRAM_API_KEY", "deepgram-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected defaults with keys from env, got %v", err)
	}
	if cfg.Keys.Gemini != "gemini-key" || cfg.Keys.Deepgram != "deepgram-key" {
		t.Fatalf("expected keys from env, got %+v", cfg.Keys)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearKeys(t)
	os.Unsetenv("GROQ_API_KEY")
	path := writeConfig(t, "backend:\n  provider: groq\nrecognition:\n  provider: groq\n")
	if err := os.WriteFile(".env", []byte("GROQ_API_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Keys.Groq != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.Keys.Groq)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, "assistant:\n  wake_phrase: hey\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "wake_phrase") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	clearKeys(t)
	path := writeConfig(t, "audio:\n  calibration: soon\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Assistant.WakePhrases = nil
	cfg.Audio.Driver = "alsa"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"wake phrase", "alsa", "DEEPGRAM_API_KEY", "GEMINI_API_KEY", "xml"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestSchemaUsesYAMLNames(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("expected schema, got %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("expected valid JSON, got %v", err)
	}
	text := string(data)
	for _, want := range []string{`"wake_phrases"`, `"history_file"`, `"Go duration, e.g. 500ms or 5s"`, `"miniaudio"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in schema", want)
		}
	}
}
