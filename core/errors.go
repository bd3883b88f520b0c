package assistant

import (
	"errors"

	"github.com/koscakluka/pixel-core/core/audio"
	"github.com/koscakluka/pixel-core/core/speechtotext"
)

var (
	// ErrCaptureTimeout means no speech began within a listen timeout. It is
	// expected and retried silently.
	ErrCaptureTimeout = audio.ErrNoSpeech
	// ErrRecognitionFailure means speech was captured but not understood.
	ErrRecognitionFailure = speechtotext.ErrNotUnderstood
	// ErrServiceUnavailable means the recognition service or the backend
	// could not be reached. The background loop backs off after it. Backend
	// failures wrapping llms.ErrServiceUnavailable are reported with it.
	ErrServiceUnavailable = speechtotext.ErrServiceUnavailable
	// ErrActionFailure means a local system action failed. The command still
	// counts as handled.
	ErrActionFailure = errors.New("local action failed")
	// ErrUnhandled wraps any other fault inside dispatch or forwarding,
	// including recovered panics.
	ErrUnhandled = errors.New("unhandled failure")

	ErrBusy            = errors.New("assistant is busy with another interaction")
	ErrClosed          = errors.New("assistant is shut down")
	ErrShutdownTimeout = errors.New("shutdown timed out")
)
