package system

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/koscakluka/pixel-core/core/texttospeech"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const defaultRate = 175

var tracer = otel.Tracer("github.com/koscakluka/pixel-core/core/texttospeech/system")

// Synthesizer speaks through the operating system's speech engine: say on
// macOS, SAPI through PowerShell on Windows and espeak elsewhere.
type Synthesizer struct {
	goos    string
	options texttospeech.SynthesizerOptions
	lookup  func(string) (string, error)
}

func NewSynthesizer(opts ...texttospeech.SynthesizerOption) *Synthesizer {
	return &Synthesizer{
		goos:    runtime.GOOS,
		options: texttospeech.ApplyOptions(texttospeech.SynthesizerOptions{Rate: defaultRate}, opts...),
		lookup:  exec.LookPath,
	}
}

// Available reports whether the speech engine for this platform is
// installed.
func (s *Synthesizer) Available() bool {
	name, _ := command(s.goos, s.options, "")
	_, err := s.lookup(name)
	return err == nil
}

func (s *Synthesizer) Say(ctx context.Context, text string) (err error) {
	ctx, span := tracer.Start(ctx, "system speech")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "system speech failed")
		}
		span.End()
	}()

	name, args := command(s.goos, s.options, text)
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

func command(goos string, options texttospeech.SynthesizerOptions, text string) (string, []string) {
	switch goos {
	case "darwin":
		args := []string{"-r", strconv.Itoa(options.Rate)}
		if options.Voice != "" {
			args = append(args, "-v", options.Voice)
		}
		return "say", append(args, "--", text)
	case "windows":
		// SAPI rate runs from -10 to 10 with 0 at roughly 180 words per
		// minute.
		rate := max(-10, min(10, (options.Rate-180)/20))
		script := "Add-Type -AssemblyName System.Speech; " +
			"$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; " +
			"$s.Rate = " + strconv.Itoa(rate) + "; "
		if options.Voice != "" {
			script += "$s.SelectVoice(" + powershellQuote(options.Voice) + "); "
		}
		script += "$s.Speak(" + powershellQuote(text) + ")"
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
	default:
		args := []string{"-s", strconv.Itoa(options.Rate)}
		if options.Voice != "" {
			args = append(args, "-v", options.Voice)
		}
		return "espeak", append(args, "--", text)
	}
}

func powershellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
