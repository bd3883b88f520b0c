package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Assistant   AssistantConfig   `yaml:"assistant"`
	Audio       AudioConfig       `yaml:"audio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Speech      SpeechConfig      `yaml:"speech"`
	Backend     BackendConfig     `yaml:"backend"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Keys        KeysConfig        `yaml:"keys"`
}

type AssistantConfig struct {
	WakePhrases           []string              `yaml:"wake_phrases" jsonschema:"description=Phrases that start an interaction"`
	Greet                 bool                  `yaml:"greet" jsonschema:"description=Speak a greeting on start"`
	DrainSpeechOnShutdown bool                  `yaml:"drain_speech_on_shutdown"`
	Timings               TimingsConfig         `yaml:"timings,omitempty"`
	Phrases               PhrasesConfig         `yaml:"phrases,omitempty"`
	Sites                 []assistant.SiteAlias `yaml:"sites,omitempty" jsonschema:"description=Site shortcuts checked before the built-in ones"`
}

// TimingsConfig leaves zero values to the assistant's defaults.
type TimingsConfig struct {
	WakeTimeout        Duration `yaml:"wake_timeout,omitempty"`
	WakePhraseLimit    Duration `yaml:"wake_phrase_limit,omitempty"`
	CommandTimeout     Duration `yaml:"command_timeout,omitempty"`
	CommandPhraseLimit Duration `yaml:"command_phrase_limit,omitempty"`
	Backoff            Duration `yaml:"backoff,omitempty"`
	Settle             Duration `yaml:"settle,omitempty"`
}

type PhrasesConfig struct {
	Acknowledge    string   `yaml:"acknowledge,omitempty"`
	NotHeard       string   `yaml:"not_heard,omitempty"`
	NotUnderstood  string   `yaml:"not_understood,omitempty"`
	Apology        string   `yaml:"apology,omitempty"`
	ServiceApology string   `yaml:"service_apology,omitempty" jsonschema:"description=Spoken when the speech service or the backend cannot be reached"`
	Greetings      []string `yaml:"greetings,omitempty"`
}

type AudioConfig struct {
	Driver      string   `yaml:"driver" jsonschema:"enum=portaudio,enum=miniaudio"`
	Calibration Duration `yaml:"calibration" jsonschema:"description=Ambient noise calibration before listening starts"`
	ArchiveDir  string   `yaml:"archive_dir,omitempty" jsonschema:"description=Keep every capture as a WAV file in this directory"`
}

type RecognitionConfig struct {
	Provider string `yaml:"provider" jsonschema:"enum=deepgram,enum=openai,enum=groq,enum=whisper"`
	Model    string `yaml:"model,omitempty"`
	Language string `yaml:"language,omitempty"`
	// WhisperModel is the path to a ggml model for the local recognizer.
	WhisperModel string `yaml:"whisper_model,omitempty"`
}

type SpeechConfig struct {
	Provider string `yaml:"provider" jsonschema:"enum=system,enum=deepgram"`
	Voice    string `yaml:"voice,omitempty"`
	Rate     int    `yaml:"rate,omitempty" jsonschema:"description=Words per minute for the system voice"`
}

type BackendConfig struct {
	Provider    string `yaml:"provider" jsonschema:"enum=gemini,enum=openai,enum=groq,enum=none"`
	Model       string `yaml:"model,omitempty"`
	HistoryFile string `yaml:"history_file,omitempty" jsonschema:"description=JSON transcript kept between runs; empty keeps history in memory"`
	MaxHistory  int    `yaml:"max_history,omitempty"`
	PersonaFile string `yaml:"persona_file,omitempty" jsonschema:"description=YAML persona replacing the built-in one"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" jsonschema:"enum=text,enum=json"`
}

// KeysConfig holds service credentials. Environment variables take
// precedence over the file.
type KeysConfig struct {
	Gemini   string `yaml:"gemini,omitempty"`
	OpenAI   string `yaml:"openai,omitempty"`
	Groq     string `yaml:"groq,omitempty"`
	Deepgram string `yaml:"deepgram,omitempty"`
}

func Default() Config {
	return Config{
		Assistant: AssistantConfig{
			WakePhrases: []string{"hey pixel", "ok pixel"},
			Greet:       true,
		},
		Audio:       AudioConfig{Driver: "portaudio", Calibration: Duration(time.Second)},
		Recognition: RecognitionConfig{Provider: "deepgram"},
		Speech:      SpeechConfig{Provider: "system"},
		Backend:     BackendConfig{Provider: "gemini", HistoryFile: "chat_history.json", MaxHistory: 50},
		Server:      ServerConfig{Address: "127.0.0.1:8765"},
		Logging:     LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, loads .env from the
// working directory and applies environment overrides. An empty path, or a
// file that does not exist, leaves the defaults in place.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			decoder := yaml.NewDecoder(bytes.NewReader(data))
			decoder.KnownFields(true)
			if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		name   string
		target *string
	}{
		{"GEMINI_API_KEY", &c.Keys.Gemini},
		{"OPENAI_API_KEY", &c.Keys.OpenAI},
		{"GROQ_API_KEY", &c.Keys.Groq},
		{"DEEPGRAM_API_KEY", &c.Keys.Deepgram},
		{"PIXEL_LOG_LEVEL", &c.Logging.Level},
	}
	for _, override := range overrides {
		if value := strings.TrimSpace(getenv(override.name)); value != "" {
			*override.target = value
		}
	}
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.Assistant.WakePhrases) == 0 {
		errs = append(errs, errors.New("at least one wake phrase is required"))
	}
	if !slices.Contains([]string{"portaudio", "miniaudio"}, c.Audio.Driver) {
		errs = append(errs, fmt.Errorf("unknown audio driver %q", c.Audio.Driver))
	}

	switch c.Recognition.Provider {
	case "deepgram":
		errs = append(errs, requireKey(c.Keys.Deepgram, "DEEPGRAM_API_KEY", "deepgram recognition"))
	case "openai":
		errs = append(errs, requireKey(c.Keys.OpenAI, "OPENAI_API_KEY", "openai recognition"))
	case "groq":
		errs = append(errs, requireKey(c.Keys.Groq, "GROQ_API_KEY", "groq recognition"))
	case "whisper":
		if c.Recognition.WhisperModel == "" {
			errs = append(errs, errors.New("whisper recognition needs recognition.whisper_model"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown recognition provider %q", c.Recognition.Provider))
	}

	switch c.Speech.Provider {
	case "system":
	case "deepgram":
		errs = append(errs, requireKey(c.Keys.Deepgram, "DEEPGRAM_API_KEY", "deepgram speech"))
	default:
		errs = append(errs, fmt.Errorf("unknown speech provider %q", c.Speech.Provider))
	}

	switch c.Backend.Provider {
	case "none":
	case "gemini":
		errs = append(errs, requireKey(c.Keys.Gemini, "GEMINI_API_KEY", "gemini backend"))
	case "openai":
		errs = append(errs, requireKey(c.Keys.OpenAI, "OPENAI_API_KEY", "openai backend"))
	case "groq":
		errs = append(errs, requireKey(c.Keys.Groq, "GROQ_API_KEY", "groq backend"))
	default:
		errs = append(errs, fmt.Errorf("unknown backend provider %q", c.Backend.Provider))
	}

	if c.Server.Enabled && c.Server.Address == "" {
		errs = append(errs, errors.New("server.address is required when the server is enabled"))
	}
	if !slices.Contains([]string{"text", "json"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func requireKey(value, env, use string) error {
	if value == "" {
		return fmt.Errorf("%s needs an API key (set %s or keys in the config file)", use, env)
	}
	return nil
}
