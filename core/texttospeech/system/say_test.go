package system

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/koscakluka/pixel-core/core/texttospeech"
)

func TestCommandPerPlatform(t *testing.T) {
	options := texttospeech.SynthesizerOptions{Rate: 175}

	tests := []struct {
		goos string
		name string
		args []string
	}{
		{goos: "darwin", name: "say", args: []string{"-r", "175", "--", "HELLO"}},
		{goos: "linux", name: "espeak", args: []string{"-s", "175", "--", "HELLO"}},
		{goos: "freebsd", name: "espeak", args: []string{"-s", "175", "--", "HELLO"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := command(tt.goos, options, "HELLO")
			if name != tt.name || !slices.Equal(args, tt.args) {
				t.Fatalf("expected %s %v, got %s %v", tt.name, tt.args, name, args)
			}
		})
	}
}

func TestCommandWindowsQuotesText(t *testing.T) {
	name, args := command("windows", texttospeech.SynthesizerOptions{Rate: 180}, "IT'S 5 O'CLOCK")
	if name != "powershell" {
		t.Fatalf("expected powershell, got %s", name)
	}
	script := args[len(args)-1]
	if !strings.Contains(script, "$s.Speak('IT''S 5 O''CLOCK')") || !strings.Contains(script, "$s.Rate = 0;") {
		t.Fatalf("unexpected script %q", script)
	}
}

func TestCommandPassesVoice(t *testing.T) {
	_, args := command("linux", texttospeech.SynthesizerOptions{Rate: 150, Voice: "en-us"}, "HI")
	if !slices.Equal(args, []string{"-s", "150", "-v", "en-us", "--", "HI"}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestSayReportsMissingEngine(t *testing.T) {
	synth := NewSynthesizer()
	synth.goos = "plan9-without-espeak"
	synth.lookup = func(string) (string, error) { return "", exec.ErrNotFound }

	if synth.Available() {
		t.Fatalf("expected engine to be unavailable")
	}
}

func TestSayCancelled(t *testing.T) {
	synth := NewSynthesizer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := synth.Say(ctx, "HELLO"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
