package actions

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

type recordingRunner struct {
	installed []string
	calls     [][]string
	err       error
}

func (r *recordingRunner) lookup(name string) (string, error) {
	if slices.Contains(r.installed, name) {
		return "/usr/bin/" + name, nil
	}
	return "", exec.ErrNotFound
}

func (r *recordingRunner) run(_ context.Context, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

func newTestSystem(t *testing.T, goos string, runner *recordingRunner) *System {
	t.Helper()
	s := NewSystem(WithScreenshotDir(t.TempDir()))
	s.goos = goos
	s.lookup = runner.lookup
	s.run = runner.run
	s.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC) }
	return s
}

func TestVolumeUsesFirstInstalledTool(t *testing.T) {
	runner := &recordingRunner{installed: []string{"wpctl", "amixer"}}
	s := newTestSystem(t, "linux", runner)

	if err := s.VolumeUp(context.Background()); err != nil {
		t.Fatalf("expected volume up to succeed, got %v", err)
	}
	if err := s.VolumeDown(context.Background()); err != nil {
		t.Fatalf("expected volume down to succeed, got %v", err)
	}

	expected := [][]string{
		{"wpctl", "set-volume", "@DEFAULT_AUDIO_SINK@", "10%+"},
		{"wpctl", "set-volume", "@DEFAULT_AUDIO_SINK@", "10%-"},
	}
	if !slices.EqualFunc(runner.calls, expected, slices.Equal[[]string]) {
		t.Fatalf("expected %v, got %v", expected, runner.calls)
	}
}

func TestPactlVolumeArguments(t *testing.T) {
	runner := &recordingRunner{installed: []string{"pactl"}}
	s := newTestSystem(t, "linux", runner)

	_ = s.VolumeDown(context.Background())
	if len(runner.calls) != 1 || !slices.Equal(runner.calls[0], []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", "-10%"}) {
		t.Fatalf("unexpected calls %v", runner.calls)
	}
}

func TestMuteOnMac(t *testing.T) {
	runner := &recordingRunner{installed: []string{"osascript"}}
	s := newTestSystem(t, "darwin", runner)

	if err := s.Mute(context.Background()); err != nil {
		t.Fatalf("expected mute to succeed, got %v", err)
	}
	if len(runner.calls) != 1 || runner.calls[0][2] != "set volume with output muted" {
		t.Fatalf("unexpected calls %v", runner.calls)
	}
}

func TestWindowsVolumeSendsKeyPresses(t *testing.T) {
	runner := &recordingRunner{installed: []string{"powershell"}}
	s := newTestSystem(t, "windows", runner)

	_ = s.VolumeDown(context.Background())
	script := runner.calls[0][len(runner.calls[0])-1]
	if !strings.Contains(script, "1..5") || !strings.Contains(script, "[char]174") {
		t.Fatalf("expected five volume down presses, got %q", script)
	}
}

func TestScreenshotReturnsPath(t *testing.T) {
	runner := &recordingRunner{installed: []string{"scrot"}}
	s := newTestSystem(t, "linux", runner)

	path, err := s.Screenshot(context.Background())
	if err != nil {
		t.Fatalf("expected screenshot to succeed, got %v", err)
	}
	if filepath.Base(path) != "screenshot_20240501_093015.png" || filepath.Dir(path) != s.screenshotDir {
		t.Fatalf("unexpected screenshot path %q", path)
	}
	if len(runner.calls) != 1 || !slices.Equal(runner.calls[0], []string{"scrot", path}) {
		t.Fatalf("unexpected calls %v", runner.calls)
	}
}

func TestWindowsScreenshotQuotesPath(t *testing.T) {
	commands := screenshotCommands("windows", `C:\Users\o'neil\shot.png`)
	script := commands[0][len(commands[0])-1]
	if !strings.Contains(script, `'C:\Users\o''neil\shot.png'`) {
		t.Fatalf("expected quoted path, got %q", script)
	}
}

func TestMissingToolIsUnsupported(t *testing.T) {
	s := newTestSystem(t, "linux", &recordingRunner{})

	if err := s.MinimizeAll(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestToolFailureIsReturned(t *testing.T) {
	runner := &recordingRunner{installed: []string{"xdotool"}, err: errors.New("no display")}
	s := newTestSystem(t, "linux", runner)

	err := s.MinimizeAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no display") {
		t.Fatalf("expected tool error, got %v", err)
	}
}

func TestOpenURL(t *testing.T) {
	s := newTestSystem(t, "linux", &recordingRunner{})
	var opened []string
	s.openURL = func(url string) error {
		opened = append(opened, url)
		return nil
	}

	if err := s.OpenURL(context.Background(), "https://youtube.com"); err != nil {
		t.Fatalf("expected url to open, got %v", err)
	}
	if !slices.Equal(opened, []string{"https://youtube.com"}) {
		t.Fatalf("unexpected opened urls %v", opened)
	}

	s.openURL = func(string) error { return errors.New("no browser") }
	if err := s.OpenURL(context.Background(), "https://example.com"); err == nil {
		t.Fatalf("expected browser failure to be returned")
	}
}
