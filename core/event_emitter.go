package assistant

import (
	"sync"

	"github.com/koscakluka/pixel-core/core/events"
)

// eventEmitter fans events out to subscribers in the order they are
// emitted. Subscribers are called synchronously and must not block.
type eventEmitter struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(events.Event)
}

func newEventEmitter() *eventEmitter {
	return &eventEmitter{subscribers: map[int]func(events.Event){}}
}

func (e *eventEmitter) subscribe(fn func(events.Event)) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.subscribers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subscribers, id)
	}
}

func (e *eventEmitter) emit(event events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, fn := range e.subscribers {
		if err := panicSafe("event subscriber", func() error {
			fn(event)
			return nil
		}); err != nil {
			logger.Error("Event subscriber failed, removing it", "kind", event.Kind(), "error", err)
			delete(e.subscribers, id)
		}
	}
}

// Subscribe registers fn for every assistant event: state changes, wake
// detections, processed commands and speech. fn is called synchronously
// from the component that produced the event and must return quickly
// without calling back into the assistant. The returned function removes
// the subscription.
func (a *VoiceAssistant) Subscribe(fn func(events.Event)) (remove func()) {
	return a.events.subscribe(fn)
}

func (a *VoiceAssistant) emitTransition(t Transition) {
	a.events.emit(events.NewStateChanged(t.From.String(), t.To.String()))
}

func (a *VoiceAssistant) emitSpeechQueued(request SpeechRequest) {
	a.events.emit(events.NewSpeechQueued(request.ID, request.Text))
}

func (a *VoiceAssistant) emitSpeechSpoken(request SpeechRequest) {
	a.events.emit(events.NewSpeechSpoken(request.ID, request.Text))
}

func (a *VoiceAssistant) emitExchange(exchange Exchange) {
	event := events.NewCommandProcessed(exchange.Source, exchange.Text, exchange.Outcome.Kind.String())
	event.Action = exchange.Outcome.Action
	event.Reply = exchange.Reply
	event.Error = exchange.Error
	a.events.emit(event)
}
