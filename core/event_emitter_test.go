package assistant

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/koscakluka/pixel-core/core/events"
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(event events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) kinds(skip ...events.Kind) []events.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()

	var kinds []events.Kind
	for _, event := range l.events {
		if !slices.Contains(skip, event.Kind()) {
			kinds = append(kinds, event.Kind())
		}
	}
	return kinds
}

func (l *eventLog) find(kind events.Kind) events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range l.events {
		if event.Kind() == kind {
			return event
		}
	}
	return nil
}

func TestAssistantEmitsEventsForTypedCommand(t *testing.T) {
	a, _, _ := newTypedAssistant(t, WithBackend(&fakeBackend{answer: "HELLO THERE"}))
	log := &eventLog{}
	a.Subscribe(log.record)

	a.SubmitTypedCommand(context.Background(), "how are you")

	expected := []events.Kind{
		events.KindStateChanged,
		events.KindStateChanged,
		events.KindSpeechQueued,
		events.KindCommandProcessed,
		events.KindStateChanged,
	}
	if got := log.kinds(events.KindSpeechSpoken); !slices.Equal(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}

	processed, ok := log.find(events.KindCommandProcessed).(events.CommandProcessed)
	if !ok {
		t.Fatalf("expected a CommandProcessed event")
	}
	if processed.Source != SourceTyped || processed.Outcome != "forward_to_backend" || processed.Reply != "HELLO THERE" {
		t.Fatalf("expected forwarded typed command, got %+v", processed)
	}

	first, ok := log.find(events.KindStateChanged).(events.StateChanged)
	if !ok || first.From != "idle" || first.To != "wake_detected" {
		t.Fatalf("expected idle -> wake_detected first, got %+v", first)
	}

	waitFor(t, func() bool { return log.find(events.KindSpeechSpoken) != nil })
}

func TestAssistantDropsPanickingSubscriber(t *testing.T) {
	a, _, _ := newTypedAssistant(t, WithBackend(&fakeBackend{answer: "OK"}))

	calls := 0
	a.Subscribe(func(events.Event) {
		calls++
		panic("subscriber bug")
	})
	log := &eventLog{}
	remove := a.Subscribe(log.record)

	reply := a.SubmitTypedCommand(context.Background(), "hello")
	if reply.Err != nil {
		t.Fatalf("expected command to succeed despite subscriber, got %v", reply.Err)
	}
	if calls != 1 {
		t.Fatalf("expected panicking subscriber to be called once, got %d", calls)
	}
	if len(log.kinds()) == 0 {
		t.Fatalf("expected other subscribers to keep receiving events")
	}

	remove()
	before := len(log.kinds())
	a.SubmitTypedCommand(context.Background(), "hello again")
	if after := len(log.kinds()); after != before {
		t.Fatalf("expected no events after removal, got %d new", after-before)
	}
}
