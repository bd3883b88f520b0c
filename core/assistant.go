package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/koscakluka/pixel-core/core/events"
	"github.com/koscakluka/pixel-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Backend is the conversational service commands are forwarded to when no
// local action matches.
type Backend interface {
	Send(ctx context.Context, text string) (string, error)
}

// Timings bounds every wait of the background loop.
type Timings struct {
	WakeTimeout        time.Duration
	WakePhraseLimit    time.Duration
	CommandTimeout     time.Duration
	CommandPhraseLimit time.Duration
	// Backoff is the pause after a failed probe, e.g. while the recognition
	// service is unreachable.
	Backoff time.Duration
	// Settle is the pause after an interaction before listening again.
	Settle time.Duration
	// Poll is how often the loop checks the state while it is not idle.
	Poll time.Duration
	// SpeechWait caps how long the loop waits for queued speech to finish
	// before opening the microphone.
	SpeechWait time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		WakeTimeout:        5 * time.Second,
		WakePhraseLimit:    5 * time.Second,
		CommandTimeout:     5 * time.Second,
		CommandPhraseLimit: 10 * time.Second,
		Backoff:            3 * time.Second,
		Settle:             500 * time.Millisecond,
		Poll:               100 * time.Millisecond,
		SpeechWait:         10 * time.Second,
	}
}

// Phrases are the fixed lines the assistant speaks on its own.
type Phrases struct {
	Acknowledge    string
	NotHeard       string
	NotUnderstood  string
	Apology        string
	ServiceApology string
	Greetings      []string
}

func DefaultPhrases() Phrases {
	return Phrases{
		Acknowledge:    "YES?",
		NotHeard:       "I DID NOT HEAR ANYTHING",
		NotUnderstood:  "I DID NOT UNDERSTAND YOUR COMMAND",
		Apology:        "SOMETHING WENT WRONG",
		ServiceApology: "I CANNOT REACH THE SPEECH SERVICE RIGHT NOW",
		Greetings: []string{
			"HEY! I WAS JUST WAITING FOR YOU",
			"OH HI! WANNA CHAT",
			"YOU’RE BACK! THAT MADE MY DAY",
			"HI! WHAT’S UP",
		},
	}
}

const (
	SourceVoice = "voice"
	SourceTyped = "typed"
)

// Exchange is one processed command and what came of it.
type Exchange struct {
	Source  string         `json:"source"`
	Text    string         `json:"text"`
	Outcome CommandOutcome `json:"outcome"`
	Reply   string         `json:"reply,omitempty"`
	Error   string         `json:"error,omitempty"`
	At      time.Time      `json:"at"`
}

// VoiceAssistant runs the background wake-listen-dispatch-speak loop and
// accepts typed commands from the foreground. The microphone is only used
// through its AudioInputGate and the speaker only through its
// SpeechOutputQueue.
type VoiceAssistant struct {
	microphone  Microphone
	recognizer  Recognizer
	synthesizer Synthesizer
	actions     Actions
	backend     Backend

	wakePhrases    []string
	timings        Timings
	phrases        Phrases
	dispatcherOpts []DispatcherOption
	audioOpts      []AudioInputOption
	speechOpts     []SpeechQueueOption
	onExchange     func(Exchange)
	logger         *slog.Logger

	events     *eventEmitter
	state      *InteractionState
	speech     *SpeechOutputQueue
	input      *AudioInputGate
	dispatcher *CommandDispatcher
	wake       *WakeMatcher

	mu            sync.Mutex
	started       bool
	closed        bool
	muteRequested bool

	// Owned by the background loop.
	outageReported bool

	typedMu sync.Mutex
	// A typed "open site" waits here for its destination until this time.
	pendingSiteUntil time.Time

	cancel    context.CancelFunc
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewVoiceAssistant builds every component and starts the speech worker.
// The background loop only runs after Start; typed commands work right away.
func NewVoiceAssistant(opts ...AssistantOption) *VoiceAssistant {
	a := &VoiceAssistant{
		timings: DefaultTimings(),
		phrases: DefaultPhrases(),
		logger:  logger,
		events:  newEventEmitter(),
		state:   NewInteractionState(),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.synthesizer == nil {
		a.synthesizer = logSynthesizer{logger: a.logger}
	}

	a.speech = NewSpeechOutputQueue(a.synthesizer, append([]SpeechQueueOption{
		WithSpeechQueueLogger(a.logger),
		WithQueuedCallback(a.emitSpeechQueued),
		WithSpokenCallback(a.emitSpeechSpoken),
	}, a.speechOpts...)...)
	a.input = NewAudioInputGate(a.microphone, a.recognizer,
		append([]AudioInputOption{WithAudioInputLogger(a.logger)}, a.audioOpts...)...)
	a.dispatcher = NewCommandDispatcher(a.actions, a.speech,
		append([]DispatcherOption{WithDispatcherLogger(a.logger)}, a.dispatcherOpts...)...)
	a.wake = NewWakeMatcher(a.wakePhrases...)
	a.state.logger = a.logger
	a.state.Observe(a.emitTransition)
	return a
}

// Start launches the background listening loop. The loop runs until
// Shutdown is called or ctx is done.
func (a *VoiceAssistant) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.closed:
		return ErrClosed
	case a.started:
		return errors.New("assistant already started")
	case a.microphone == nil || a.recognizer == nil:
		return errors.New("background listening needs a microphone and a recognizer")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.started = true
	go a.run(loopCtx)
	return nil
}

// Shutdown stops the background loop at its next polling point and then
// shuts the speech queue down. A capture in progress is allowed to finish
// unless the wait runs out, in which case it is cancelled and
// ErrShutdownTimeout is returned.
func (a *VoiceAssistant) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	deadline := time.Now().Add(timeout)

	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		close(a.closeCh)
	})

	a.mu.Lock()
	started, cancel := a.started, a.cancel
	a.mu.Unlock()

	var errs []error
	if started {
		timer := time.NewTimer(time.Until(deadline))
		select {
		case <-a.done:
		case <-timer.C:
			errs = append(errs, fmt.Errorf("listening loop did not stop within %v: %w", timeout, ErrShutdownTimeout))
		}
		timer.Stop()
		cancel()
	}

	if err := a.speech.Shutdown(max(time.Until(deadline), time.Millisecond)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// MuteBackgroundListening suspends wake probes. While an interaction is in
// progress the mute is applied when it ends. It reports false if listening
// was already muted.
func (a *VoiceAssistant) MuteBackgroundListening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.CompareAndTransition(StateIdle, StateSuspended) {
		a.logger.Info("Background listening muted")
		return true
	}
	if a.state.Current() == StateSuspended || a.muteRequested {
		return false
	}
	a.muteRequested = true
	a.logger.Info("Background listening will be muted after the current interaction")
	return true
}

// Resume lifts a mute, or cancels one still waiting for the current
// interaction to end. It reports false if listening was not muted.
func (a *VoiceAssistant) Resume() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.muteRequested {
		a.muteRequested = false
		return true
	}
	if a.state.CompareAndTransition(StateSuspended, StateIdle) {
		a.logger.Info("Background listening resumed")
		return true
	}
	return false
}

// ToggleMute flips between muted and listening and returns whether
// listening is muted afterwards.
func (a *VoiceAssistant) ToggleMute() bool {
	if a.Muted() {
		a.Resume()
		return false
	}
	a.MuteBackgroundListening()
	return true
}

// Muted reports whether background listening is muted or about to be.
func (a *VoiceAssistant) Muted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.muteRequested || a.state.Current() == StateSuspended
}

func (a *VoiceAssistant) State() State {
	return a.state.Current()
}

// ObserveState registers fn for every state transition. See
// InteractionState.Observe.
func (a *VoiceAssistant) ObserveState(fn func(Transition)) (remove func()) {
	return a.state.Observe(fn)
}

// Speak queues text on the speech output without waiting for it.
func (a *VoiceAssistant) Speak(text string) bool {
	return a.speech.Speak(text)
}

// Greet speaks one of the configured greetings at random.
func (a *VoiceAssistant) Greet() bool {
	if len(a.phrases.Greetings) == 0 {
		return false
	}
	return a.speech.Speak(a.phrases.Greetings[rand.IntN(len(a.phrases.Greetings))])
}

type historyClearer interface {
	ClearHistory() error
}

// ClearHistory forgets the conversation kept by the backend, if it keeps
// one.
func (a *VoiceAssistant) ClearHistory() error {
	clearer, ok := a.backend.(historyClearer)
	if !ok {
		return nil
	}
	return clearer.ClearHistory()
}

func (a *VoiceAssistant) run(ctx context.Context) {
	defer close(a.done)
	a.logger.Info("Background listening started")
	defer a.logger.Info("Background listening stopped")

	for !a.stopping(ctx) {
		if a.state.Current() != StateIdle {
			a.sleep(ctx, a.timings.Poll)
			continue
		}

		var backoff time.Duration
		err := panicSafe("listening cycle", func() error {
			backoff = a.cycle(ctx)
			return nil
		})
		if err != nil {
			a.logger.Error("Listening cycle failed", "error", err)
			backoff = a.timings.Backoff
		}
		if backoff > 0 {
			a.sleep(ctx, backoff)
		}
	}
}

// cycle runs one wake probe and, when the wake phrase is heard, the whole
// interaction that follows. It returns how long to back off before the next
// probe.
func (a *VoiceAssistant) cycle(ctx context.Context) time.Duration {
	a.waitForSpeech(ctx)
	// Muted, or taken over by a typed command, while speech was playing.
	if a.stopping(ctx) || a.state.Current() != StateIdle {
		return 0
	}

	capture, err := a.input.ListenShort(ctx, a.timings.WakeTimeout, a.timings.WakePhraseLimit)
	switch {
	case err == nil:
	case errors.Is(err, ErrCaptureTimeout), ctx.Err() != nil:
		return 0
	default:
		a.logger.Warn("Wake probe failed", "error", err)
		return a.timings.Backoff
	}

	text, err := a.input.Recognize(ctx, capture)
	switch {
	case err == nil:
		a.outageReported = false
	case errors.Is(err, ErrRecognitionFailure), ctx.Err() != nil:
		return 0
	case errors.Is(err, ErrServiceUnavailable):
		a.logger.Warn("Recognition service unavailable, backing off", "error", err, "backoff", a.timings.Backoff)
		if !a.outageReported {
			a.outageReported = true
			a.speech.Speak(a.phrases.ServiceApology)
		}
		return a.timings.Backoff
	default:
		a.logger.Warn("Failed to recognize wake probe", "error", err)
		return a.timings.Backoff
	}

	inline, ok := a.wake.Match(text)
	if !ok {
		a.logger.Debug("Ignoring speech without wake phrase", "text", text)
		return 0
	}
	// Muted, or taken over by a typed command, while the probe was running.
	if !a.state.CompareAndTransition(StateIdle, StateWakeDetected) {
		return 0
	}
	metrics.wakeDetections.Add(ctx, 1)
	a.events.emit(events.NewWakeDetected(text, inline))

	return a.interact(ctx, inline)
}

// interact owns the interaction from WakeDetected until it is back to Idle,
// or Suspended if a mute was requested meanwhile. It returns the backoff to
// apply when a service could not be reached.
func (a *VoiceAssistant) interact(ctx context.Context, inline string) (backoff time.Duration) {
	ctx, span := tracer.Start(ctx, "voice interaction")
	defer span.End()
	defer a.finishInteraction(true)
	a.clearPendingSite()

	command := inline
	if command == "" {
		a.state.Transition(StateAwaitingCommand)
		a.speech.Speak(a.phrases.Acknowledge)

		text, err := a.captureCommand(ctx)
		if err != nil {
			return a.backoffAfter(err)
		}
		command = text
	}
	span.AddEvent("command captured", trace.WithAttributes(
		attribute.Bool("command.inline", inline != ""),
		attribute.Int("command.length", len(command)),
	))

	a.state.Transition(StateProcessing)
	reply := a.process(ctx, SourceVoice, command, a.dispatcher.Dispatch)
	if reply.Outcome.FollowUp != FollowUpSiteDestination {
		return a.backoffAfter(reply.Err)
	}

	a.state.Transition(StateAwaitingCommand)
	destination, err := a.captureCommand(ctx)
	if err != nil {
		return a.backoffAfter(err)
	}
	a.state.Transition(StateProcessing)
	reply = a.process(ctx, SourceVoice, destination, a.dispatcher.OpenSite)
	return a.backoffAfter(reply.Err)
}

func (a *VoiceAssistant) backoffAfter(err error) time.Duration {
	if errors.Is(err, ErrServiceUnavailable) {
		return a.timings.Backoff
	}
	return 0
}

// captureCommand listens for one command and speaks the matching phrase
// when nothing usable was heard.
func (a *VoiceAssistant) captureCommand(ctx context.Context) (string, error) {
	a.waitForSpeech(ctx)

	capture, err := a.input.ListenCommand(ctx, a.timings.CommandTimeout, a.timings.CommandPhraseLimit)
	if err == nil {
		var text string
		if text, err = a.input.Recognize(ctx, capture); err == nil {
			return text, nil
		}
	}

	switch {
	case ctx.Err() != nil:
	case errors.Is(err, ErrCaptureTimeout):
		a.speech.Speak(a.phrases.NotHeard)
	case errors.Is(err, ErrRecognitionFailure):
		a.speech.Speak(a.phrases.NotUnderstood)
	case errors.Is(err, ErrServiceUnavailable):
		a.logger.Warn("Recognition service unavailable", "error", err)
		a.speech.Speak(a.phrases.ServiceApology)
	default:
		a.logger.Error("Failed to capture command", "error", err)
		a.speech.Speak(a.phrases.Apology)
	}
	return "", err
}

// process resolves text with resolve, forwards it to the backend when asked
// to and speaks the answer. Faults are turned into a spoken apology.
func (a *VoiceAssistant) process(ctx context.Context, source, text string, resolve func(context.Context, string) CommandOutcome) (reply Reply) {
	ctx, span := tracer.Start(ctx, "process command")
	span.SetAttributes(attribute.String("command.source", source))
	defer func() {
		if recovered := recover(); recovered != nil {
			reply.Err = fmt.Errorf("%w: command panicked: %v", ErrUnhandled, recovered)
			a.logger.Error("Command panicked", "source", source, "panic", recovered)
			a.speech.Speak(a.phrases.Apology)
		}
		if reply.Err != nil {
			span.RecordError(reply.Err)
			span.SetStatus(codes.Error, "command failed")
		}
		span.End()
		a.recordExchange(source, text, reply)
	}()

	reply.Outcome = resolve(ctx, text)
	reply.Text = reply.Outcome.Reply
	reply.Err = reply.Outcome.Err
	if reply.Outcome.Kind != OutcomeForwardToBackend {
		return reply
	}

	answer, err := a.forward(ctx, reply.Outcome.Text)
	if err != nil {
		reply.Err = err
		a.speech.Speak(a.phrases.Apology)
		return reply
	}
	reply.Text = answer
	a.speech.Speak(answer)
	return reply
}

func (a *VoiceAssistant) forward(ctx context.Context, text string) (string, error) {
	if a.backend == nil {
		return "", fmt.Errorf("%w: no conversational backend configured", ErrUnhandled)
	}

	answer, err := a.backend.Send(ctx, text)
	if err != nil {
		metrics.backendFailures.Add(ctx, 1)
		a.logger.Error("Backend call failed", "error", err)
		if errors.Is(err, llms.ErrServiceUnavailable) || errors.Is(err, ErrServiceUnavailable) {
			return "", fmt.Errorf("%w: backend: %w", ErrServiceUnavailable, err)
		}
		return "", fmt.Errorf("%w: backend: %w", ErrUnhandled, err)
	}
	return answer, nil
}

// finishInteraction hands the state back to Idle, or to Suspended when a
// mute was requested during the interaction.
func (a *VoiceAssistant) finishInteraction(settle bool) {
	if settle {
		a.sleep(context.Background(), a.timings.Settle)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.muteRequested {
		a.muteRequested = false
		a.state.Transition(StateSuspended)
		a.logger.Info("Background listening muted")
		return
	}
	a.state.Transition(StateIdle)
}

func (a *VoiceAssistant) recordExchange(source, text string, reply Reply) {
	exchange := Exchange{
		Source:  source,
		Text:    text,
		Outcome: reply.Outcome,
		Reply:   reply.Text,
		At:      time.Now(),
	}
	if reply.Err != nil {
		exchange.Error = reply.Err.Error()
	}
	a.emitExchange(exchange)

	if a.onExchange == nil {
		return
	}
	if err := panicSafe("exchange callback", func() error {
		a.onExchange(exchange)
		return nil
	}); err != nil {
		a.logger.Error("Exchange callback failed", "error", err)
	}
}

// waitForSpeech keeps the microphone closed while the assistant is still
// talking so it does not hear itself.
func (a *VoiceAssistant) waitForSpeech(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.timings.SpeechWait)
	defer cancel()
	stop := withCloseCancel(ctx, a.closeCh, cancel)
	defer close(stop)

	_ = a.speech.WaitIdle(ctx)
}

func (a *VoiceAssistant) stopping(ctx context.Context) bool {
	select {
	case <-a.closeCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d, returning early on shutdown.
func (a *VoiceAssistant) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-a.closeCh:
	}
}

type logSynthesizer struct {
	logger *slog.Logger
}

func (s logSynthesizer) Say(_ context.Context, text string) error {
	s.logger.Info("Speech output not configured", "text", text)
	return nil
}
