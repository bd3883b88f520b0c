package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/koscakluka/pixel-core/core/actions"
	"github.com/koscakluka/pixel-core/core/audio"
	"github.com/koscakluka/pixel-core/core/audio/miniaudio"
	"github.com/koscakluka/pixel-core/core/audio/portaudio"
	"github.com/koscakluka/pixel-core/core/conversations"
	"github.com/koscakluka/pixel-core/core/llms"
	"github.com/koscakluka/pixel-core/core/llms/gemini"
	llmopenai "github.com/koscakluka/pixel-core/core/llms/openai"
	"github.com/koscakluka/pixel-core/core/speechtotext"
	"github.com/koscakluka/pixel-core/core/speechtotext/deepgram"
	sttopenai "github.com/koscakluka/pixel-core/core/speechtotext/openai"
	"github.com/koscakluka/pixel-core/core/texttospeech"
	ttsdeepgram "github.com/koscakluka/pixel-core/core/texttospeech/deepgram"
	"github.com/koscakluka/pixel-core/core/texttospeech/system"
	"github.com/koscakluka/pixel-core/internal/config"
	"github.com/spf13/afero"
)

// device is a sound card used both for capture and playback.
type device interface {
	audio.FrameSource
	texttospeech.Player
}

// components are the adapters picked by the configuration. close releases
// every device and model they opened.
type components struct {
	device      device
	microphone  *audio.Microphone
	recognizer  assistant.Recognizer
	synthesizer assistant.Synthesizer
	backend     assistant.Backend
	closers     []func() error
}

func (c *components) close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// openDevice opens the configured sound card once; later calls reuse it.
func (c *components) openDevice(cfg *config.Config, logger *slog.Logger) (device, error) {
	if c.device != nil {
		return c.device, nil
	}

	switch cfg.Audio.Driver {
	case "miniaudio":
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error { client.Close(); return nil })
		c.device = client
	default:
		client, err := portaudio.NewClient(audio.DefaultFrameSize)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		c.device = client
	}
	logger.Debug("Opened audio device", "driver", cfg.Audio.Driver)
	return c.device, nil
}

func (c *components) buildMicrophone(cfg *config.Config, logger *slog.Logger) error {
	source, err := c.openDevice(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	c.microphone = audio.NewMicrophone(source, audio.WithMicrophoneLogger(logger))
	return nil
}

func (c *components) buildRecognizer(cfg *config.Config) error {
	var opts []speechtotext.RecognizerOption
	if cfg.Recognition.Model != "" {
		opts = append(opts, speechtotext.WithModel(cfg.Recognition.Model))
	}
	if cfg.Recognition.Language != "" {
		opts = append(opts, speechtotext.WithLanguage(cfg.Recognition.Language))
	}

	switch cfg.Recognition.Provider {
	case "deepgram":
		c.recognizer = deepgram.NewRecognizer(cfg.Keys.Deepgram, opts...)
	case "openai":
		c.recognizer = sttopenai.NewRecognizer(cfg.Keys.OpenAI, opts...)
	case "groq":
		opts = append([]speechtotext.RecognizerOption{
			speechtotext.WithEndpoint(sttopenai.GroqEndpoint),
			speechtotext.WithModel(sttopenai.GroqModel),
		}, opts...)
		c.recognizer = sttopenai.NewRecognizer(cfg.Keys.Groq, opts...)
	case "whisper":
		recognizer, closer, err := newWhisperRecognizer(cfg.Recognition.WhisperModel, opts...)
		if err != nil {
			return err
		}
		c.recognizer = recognizer
		c.closers = append(c.closers, closer)
	default:
		return fmt.Errorf("unknown recognition provider %q", cfg.Recognition.Provider)
	}
	return nil
}

func (c *components) buildSynthesizer(cfg *config.Config, logger *slog.Logger) error {
	var opts []texttospeech.SynthesizerOption
	if cfg.Speech.Voice != "" {
		opts = append(opts, texttospeech.WithVoice(cfg.Speech.Voice))
	}
	if cfg.Speech.Rate > 0 {
		opts = append(opts, texttospeech.WithRate(cfg.Speech.Rate))
	}

	switch cfg.Speech.Provider {
	case "deepgram":
		player, err := c.openDevice(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to open speaker: %w", err)
		}
		synthesizer, err := ttsdeepgram.NewSynthesizer(cfg.Keys.Deepgram, player, opts...)
		if err != nil {
			return err
		}
		c.synthesizer = synthesizer
	default:
		synthesizer := system.NewSynthesizer(opts...)
		if !synthesizer.Available() {
			logger.Warn("No system speech engine found, replies will only be logged")
			return nil
		}
		c.synthesizer = synthesizer
	}
	return nil
}

func (c *components) buildBackend(ctx context.Context, cfg *config.Config) error {
	if cfg.Backend.Provider == "none" {
		return nil
	}

	opts := []llms.BackendOption{}
	if cfg.Backend.Model != "" {
		opts = append(opts, llms.WithModel(cfg.Backend.Model))
	}
	if cfg.Backend.MaxHistory > 0 {
		opts = append(opts, llms.WithMaxHistory(cfg.Backend.MaxHistory))
	}

	osFs := afero.NewOsFs()
	if cfg.Backend.PersonaFile != "" {
		data, err := afero.ReadFile(osFs, cfg.Backend.PersonaFile)
		if err != nil {
			return fmt.Errorf("failed to read persona: %w", err)
		}
		persona, err := llms.ParsePersona(data)
		if err != nil {
			return err
		}
		opts = append(opts, llms.WithPersona(persona))
	}
	if cfg.Backend.HistoryFile != "" {
		store, err := conversations.Open(osFs, cfg.Backend.HistoryFile)
		if err != nil {
			return err
		}
		opts = append(opts, llms.WithHistory(store))
	}

	switch cfg.Backend.Provider {
	case "gemini":
		backend, err := gemini.NewBackend(ctx, cfg.Keys.Gemini, opts...)
		if err != nil {
			return err
		}
		c.backend = backend
	case "openai":
		c.backend = llmopenai.NewBackend(cfg.Keys.OpenAI, opts...)
	case "groq":
		opts = append([]llms.BackendOption{
			llms.WithEndpoint(llmopenai.GroqEndpoint),
			llms.WithModel(llmopenai.GroqModel),
		}, opts...)
		c.backend = llmopenai.NewBackend(cfg.Keys.Groq, opts...)
	default:
		return fmt.Errorf("unknown backend provider %q", cfg.Backend.Provider)
	}
	return nil
}

func phrases(p config.PhrasesConfig) assistant.Phrases {
	return assistant.Phrases{
		Acknowledge:    p.Acknowledge,
		NotHeard:       p.NotHeard,
		NotUnderstood:  p.NotUnderstood,
		Apology:        p.Apology,
		ServiceApology: p.ServiceApology,
		Greetings:      p.Greetings,
	}
}

// assistantOptions turns the configuration and the built components into
// assistant options.
func assistantOptions(cfg *config.Config, c *components, logger *slog.Logger) []assistant.AssistantOption {
	t := cfg.Assistant.Timings

	opts := []assistant.AssistantOption{
		assistant.WithLogger(logger),
		assistant.WithActions(actions.NewSystem()),
		assistant.WithWakePhrases(cfg.Assistant.WakePhrases...),
		assistant.WithTimings(assistant.Timings{
			WakeTimeout:        t.WakeTimeout.Std(),
			WakePhraseLimit:    t.WakePhraseLimit.Std(),
			CommandTimeout:     t.CommandTimeout.Std(),
			CommandPhraseLimit: t.CommandPhraseLimit.Std(),
			Backoff:            t.Backoff.Std(),
			Settle:             t.Settle.Std(),
		}),
		assistant.WithPhrases(phrases(cfg.Assistant.Phrases)),
		assistant.WithDispatcherOptions(
			assistant.WithSites(slices.Concat(cfg.Assistant.Sites, assistant.DefaultSites)...),
		),
	}

	audioOpts := []assistant.AudioInputOption{}
	if cfg.Audio.Calibration > 0 {
		audioOpts = append(audioOpts, assistant.WithCalibrationDuration(cfg.Audio.Calibration.Std()))
	}
	if cfg.Audio.ArchiveDir != "" {
		audioOpts = append(audioOpts, assistant.WithCaptureArchive(afero.NewOsFs(), cfg.Audio.ArchiveDir))
	}
	opts = append(opts, assistant.WithAudioInputOptions(audioOpts...))

	if cfg.Assistant.DrainSpeechOnShutdown {
		opts = append(opts, assistant.WithSpeechQueueOptions(assistant.WithDrainOnShutdown()))
	}

	// Interface values holding nil pointers must not reach the assistant.
	if c.microphone != nil {
		opts = append(opts, assistant.WithMicrophone(c.microphone))
	}
	if c.recognizer != nil {
		opts = append(opts, assistant.WithRecognizer(c.recognizer))
	}
	if c.synthesizer != nil {
		opts = append(opts, assistant.WithSynthesizer(c.synthesizer))
	}
	if c.backend != nil {
		opts = append(opts, assistant.WithBackend(c.backend))
	}
	return opts
}
