package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultShutdownTimeout = 5 * time.Second

// Synthesizer speaks text on the output device and returns once playback is
// done.
type Synthesizer interface {
	Say(ctx context.Context, text string) error
}

type SpeechRequest struct {
	ID       string
	Text     string
	QueuedAt time.Time
}

// SpeechOutputQueue is the only path to the speech device. Speak never
// blocks; a single worker speaks requests one at a time in the order they
// were queued.
//
// On Shutdown requests that are still queued are abandoned unless the queue
// was built WithDrainOnShutdown. The request being spoken is always allowed
// to finish within the shutdown timeout.
type SpeechOutputQueue struct {
	synthesizer Synthesizer

	mu           sync.Mutex
	queue        []SpeechRequest
	closed       bool
	updateSignal chan struct{}
	// idle is closed while nothing is queued or being spoken.
	idle   chan struct{}
	isIdle bool

	drainOnShutdown bool
	onQueued        []func(SpeechRequest)
	onSpoken        []func(SpeechRequest)
	logger          *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type SpeechQueueOption func(*SpeechOutputQueue)

// WithDrainOnShutdown makes Shutdown speak everything already queued before
// the worker exits.
func WithDrainOnShutdown() SpeechQueueOption {
	return func(q *SpeechOutputQueue) { q.drainOnShutdown = true }
}

// WithSpokenCallback registers a callback run on the worker after each
// request has been spoken successfully. Callbacks add up.
func WithSpokenCallback(callback func(SpeechRequest)) SpeechQueueOption {
	return func(q *SpeechOutputQueue) {
		if callback != nil {
			q.onSpoken = append(q.onSpoken, callback)
		}
	}
}

// WithQueuedCallback registers a callback run for each accepted request,
// under the queue lock and in queue order. It must not call back into the
// queue.
func WithQueuedCallback(callback func(SpeechRequest)) SpeechQueueOption {
	return func(q *SpeechOutputQueue) {
		if callback != nil {
			q.onQueued = append(q.onQueued, callback)
		}
	}
}

func WithSpeechQueueLogger(l *slog.Logger) SpeechQueueOption {
	return func(q *SpeechOutputQueue) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewSpeechOutputQueue starts the worker right away.
func NewSpeechOutputQueue(synthesizer Synthesizer, opts ...SpeechQueueOption) *SpeechOutputQueue {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	q := &SpeechOutputQueue{
		synthesizer:  synthesizer,
		updateSignal: make(chan struct{}, 1),
		idle:         idle,
		isIdle:       true,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		closeCh:      make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	go q.run()
	return q
}

// Speak queues text and returns immediately. It returns false, and nothing
// is queued, for blank text or after Shutdown.
func (q *SpeechOutputQueue) Speak(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	request := SpeechRequest{
		ID:       uuid.NewString(),
		Text:     text,
		QueuedAt: time.Now(),
	}
	q.queue = append(q.queue, request)
	for _, queued := range q.onQueued {
		queued(request)
	}
	if q.isIdle {
		q.isIdle = false
		q.idle = make(chan struct{})
	}
	q.mu.Unlock()

	q.signalUpdate()
	return true
}

// Pending is the number of requests waiting behind the one being spoken.
func (q *SpeechOutputQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// WaitIdle blocks until everything queued so far has been spoken, or ctx is
// done.
func (q *SpeechOutputQueue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting requests and waits up to timeout for the worker
// to exit. When the wait runs out the in-flight synthesis is cancelled and
// ErrShutdownTimeout is returned. A timeout of zero or less uses the default.
func (q *SpeechOutputQueue) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		abandoned := 0
		if !q.drainOnShutdown {
			abandoned = len(q.queue)
			q.queue = nil
		}
		q.mu.Unlock()

		close(q.closeCh)
		if abandoned > 0 {
			q.logger.Info("abandoned queued speech on shutdown", "count", abandoned)
		}
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-timer.C:
		q.cancel()
		return fmt.Errorf("speech worker did not stop within %v: %w", timeout, ErrShutdownTimeout)
	}
}

func (q *SpeechOutputQueue) run() {
	defer close(q.done)

	for {
		request, ok := q.next()
		if !ok {
			return
		}
		q.say(request)
	}
}

// next blocks until there is a request to speak, or reports false once the
// queue is shut down and there is nothing left to drain.
func (q *SpeechOutputQueue) next() (SpeechRequest, bool) {
	for {
		q.mu.Lock()
		if len(q.queue) > 0 && (!q.closed || q.drainOnShutdown) {
			request := q.queue[0]
			q.queue[0] = SpeechRequest{}
			q.queue = q.queue[1:]
			q.mu.Unlock()
			return request, true
		}
		q.markIdle()
		if q.closed {
			q.mu.Unlock()
			return SpeechRequest{}, false
		}
		q.mu.Unlock()

		select {
		case <-q.updateSignal:
		case <-q.closeCh:
		}
	}
}

func (q *SpeechOutputQueue) say(request SpeechRequest) {
	ctx, span := tracer.Start(q.ctx, "speak")
	defer span.End()
	span.SetAttributes(
		attribute.String("speech.id", request.ID),
		attribute.Int64("speech.queued_ms", time.Since(request.QueuedAt).Milliseconds()),
	)

	err := func() (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("synthesizer panicked: %v", recovered)
			}
		}()
		return q.synthesizer.Say(ctx, request.Text)
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		metrics.synthesisFailures.Add(ctx, 1)
		q.logger.Error("Failed to speak, skipping request", "id", request.ID, "error", err)
		return
	}

	metrics.spoken.Add(ctx, 1)
	for _, spoken := range q.onSpoken {
		spoken(request)
	}
}

// markIdle must be called with mu held.
func (q *SpeechOutputQueue) markIdle() {
	if !q.isIdle {
		q.isIdle = true
		close(q.idle)
	}
}

func (q *SpeechOutputQueue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
