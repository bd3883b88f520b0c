package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/browser"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrUnsupported is returned when no tool for an action is installed on
// this platform.
var ErrUnsupported = errors.New("action not supported on this system")

const volumeStep = 10

// System performs actions on the local desktop with the platform's own
// tools: osascript and screencapture on macOS, PowerShell on Windows and
// pactl, xdotool and the usual screenshot tools elsewhere.
type System struct {
	goos          string
	screenshotDir string
	now           func() time.Time
	lookup        func(string) (string, error)
	run           func(ctx context.Context, name string, args ...string) error
	openURL       func(url string) error
}

type Option func(*System)

// WithScreenshotDir sets where screenshots are saved. Defaults to
// ~/Pictures, or the working directory if there is no home directory.
func WithScreenshotDir(dir string) Option {
	return func(s *System) { s.screenshotDir = dir }
}

func NewSystem(opts ...Option) *System {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	s := &System{
		goos:    runtime.GOOS,
		now:     time.Now,
		lookup:  exec.LookPath,
		run:     runCommand,
		openURL: browser.OpenURL,
	}
	if home, err := os.UserHomeDir(); err == nil {
		s.screenshotDir = filepath.Join(home, "Pictures")
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *System) OpenURL(ctx context.Context, url string) error {
	_, span := tracer.Start(ctx, "open url")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	if err := s.openURL(url); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open url")
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

func (s *System) VolumeUp(ctx context.Context) error {
	return s.perform(ctx, "volume up", volumeCommands(s.goos, volumeStep))
}

func (s *System) VolumeDown(ctx context.Context) error {
	return s.perform(ctx, "volume down", volumeCommands(s.goos, -volumeStep))
}

func (s *System) Mute(ctx context.Context) error {
	return s.perform(ctx, "mute", muteCommands(s.goos))
}

func (s *System) MinimizeAll(ctx context.Context) error {
	return s.perform(ctx, "minimize all", minimizeCommands(s.goos))
}

// Screenshot saves the whole screen as a PNG and returns its path.
func (s *System) Screenshot(ctx context.Context) (string, error) {
	dir := s.screenshotDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	path := filepath.Join(dir, "screenshot_"+s.now().Format("20060102_150405")+".png")
	if err := s.perform(ctx, "screenshot", screenshotCommands(s.goos, path)); err != nil {
		return "", err
	}
	return path, nil
}

// perform runs the first candidate whose tool is installed.
func (s *System) perform(ctx context.Context, action string, candidates [][]string) (err error) {
	ctx, span := tracer.Start(ctx, action)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, action+" failed")
		}
		span.End()
	}()

	for _, candidate := range candidates {
		if _, err := s.lookup(candidate[0]); err != nil {
			continue
		}
		logger.Debug("Running action", "action", action, "tool", candidate[0])
		if err := s.run(ctx, candidate[0], candidate[1:]...); err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		return nil
	}
	return fmt.Errorf("%s on %s: %w", action, s.goos, ErrUnsupported)
}

func runCommand(ctx context.Context, name string, args ...string) error {
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
