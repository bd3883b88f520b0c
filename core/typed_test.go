package assistant

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func newTypedAssistant(t *testing.T, opts ...AssistantOption) (*VoiceAssistant, *fakeSynthesizer, *transitionLog) {
	t.Helper()

	synth := newFakeSynthesizer()
	log := &transitionLog{}
	a := NewVoiceAssistant(append([]AssistantOption{WithSynthesizer(synth)}, opts...)...)
	a.ObserveState(log.record)
	t.Cleanup(func() { _ = a.Shutdown(time.Second) })
	return a, synth, log
}

func TestTypedCommandHandledLocally(t *testing.T) {
	a, synth, log := newTypedAssistant(t, WithDispatcherOptions(WithClock(fixedClock(18, 45))))

	reply := a.SubmitTypedCommand(context.Background(), "what time is it?")
	if reply.Err != nil || reply.Text != "THE TIME IS 18:45" {
		t.Fatalf("expected time reply, got %+v", reply)
	}
	if got := log.states(); !slices.Equal(got, []State{StateWakeDetected, StateProcessing, StateIdle}) {
		t.Fatalf("expected typed command to act as the listener, got %v", got)
	}
	waitFor(t, func() bool { return slices.Equal(synth.spoken(), []string{"THE TIME IS 18:45"}) })
}

func TestTypedCommandForwardedToBackend(t *testing.T) {
	backend := &fakeBackend{answer: "HELLO THERE"}
	a, synth, _ := newTypedAssistant(t, WithBackend(backend))

	reply := a.SubmitTypedCommand(context.Background(), "  how are you  ")
	if reply.Err != nil || reply.Text != "HELLO THERE" || reply.Outcome.Kind != OutcomeForwardToBackend {
		t.Fatalf("expected backend reply, got %+v", reply)
	}
	if prompts := backend.prompts(); len(prompts) != 1 || prompts[0] != "how are you" {
		t.Fatalf("expected trimmed text to be forwarded, got %v", prompts)
	}
	waitFor(t, func() bool { return slices.Equal(synth.spoken(), []string{"HELLO THERE"}) })
}

func TestTypedCommandBusyWhileBackgroundOwnsInteraction(t *testing.T) {
	backend := &fakeBackend{}
	a, _, _ := newTypedAssistant(t, WithBackend(backend))
	a.state.Transition(StateAwaitingCommand)

	reply := a.SubmitTypedCommand(context.Background(), "tell me a joke")
	if !errors.Is(reply.Err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %+v", reply)
	}
	if prompts := backend.prompts(); len(prompts) != 0 {
		t.Fatalf("expected nothing forwarded, got %v", prompts)
	}
	if a.State() != StateAwaitingCommand {
		t.Fatalf("expected state to be left alone, got %v", a.State())
	}
}

func TestTypedCommandWhileMutedKeepsState(t *testing.T) {
	backend := &fakeBackend{answer: "SURE"}
	a, _, log := newTypedAssistant(t, WithBackend(backend))
	a.MuteBackgroundListening()

	reply := a.SubmitTypedCommand(context.Background(), "tell me a joke")
	if reply.Err != nil || reply.Text != "SURE" {
		t.Fatalf("expected command to run while muted, got %+v", reply)
	}
	if a.State() != StateSuspended {
		t.Fatalf("expected to stay suspended, got %v", a.State())
	}
	if got := log.states(); !slices.Equal(got, []State{StateSuspended}) {
		t.Fatalf("expected no transitions besides the mute, got %v", got)
	}
}

func TestTypedOpenSiteFollowUp(t *testing.T) {
	actions := &fakeActions{}
	a, synth, _ := newTypedAssistant(t, WithActions(actions))

	first := a.SubmitTypedCommand(context.Background(), "open website")
	if first.Outcome.FollowUp != FollowUpSiteDestination || first.Text != phraseWhichSite {
		t.Fatalf("expected site question, got %+v", first)
	}

	second := a.SubmitTypedCommand(context.Background(), "github")
	if second.Outcome.URL != "https://github.com" {
		t.Fatalf("expected follow-up to open the site, got %+v", second)
	}

	third := a.SubmitTypedCommand(context.Background(), "github")
	if third.Outcome.Kind != OutcomeHandledLocally || third.Outcome.URL != "https://github.com" {
		t.Fatalf("expected bare alias to still open the site, got %+v", third)
	}
	if calls := actions.calls(); len(calls) != 2 {
		t.Fatalf("expected two opens, got %v", calls)
	}
	waitFor(t, func() bool { return len(synth.spoken()) == 3 })
}

func TestTypedOpenSiteFollowUpExpires(t *testing.T) {
	actions := &fakeActions{}
	backend := &fakeBackend{answer: "KNOCK KNOCK"}
	a, _, _ := newTypedAssistant(t,
		WithActions(actions),
		WithBackend(backend),
		WithTimings(Timings{CommandTimeout: 5 * time.Millisecond, CommandPhraseLimit: 5 * time.Millisecond}))

	if first := a.SubmitTypedCommand(context.Background(), "open site"); first.Outcome.FollowUp != FollowUpSiteDestination {
		t.Fatalf("expected site question, got %+v", first)
	}
	time.Sleep(30 * time.Millisecond)

	reply := a.SubmitTypedCommand(context.Background(), "tell me a joke")
	if reply.Outcome.Kind != OutcomeForwardToBackend || reply.Text != "KNOCK KNOCK" {
		t.Fatalf("expected late text to be a new command, got %+v", reply)
	}
	if calls := actions.calls(); len(calls) != 0 {
		t.Fatalf("expected no site to be opened, got %v", calls)
	}
}

func TestTypedOpenSiteFollowUpClearedBySpokenCommand(t *testing.T) {
	voice := newScriptedVoice(utterance{text: "hey pixel volume up"})
	actions := &fakeActions{}
	backend := &fakeBackend{answer: "KNOCK KNOCK"}
	env := newTestAssistant(t, voice, WithActions(actions), WithBackend(backend))

	if first := env.assistant.SubmitTypedCommand(context.Background(), "open site"); first.Outcome.FollowUp != FollowUpSiteDestination {
		t.Fatalf("expected site question, got %+v", first)
	}
	env.start(t)
	waitFor(t, func() bool { return len(actions.calls()) == 1 })
	waitFor(t, func() bool { return env.assistant.State() == StateIdle && voice.remaining() == 0 })

	var reply Reply
	waitFor(t, func() bool {
		reply = env.assistant.SubmitTypedCommand(context.Background(), "tell me a joke")
		return !errors.Is(reply.Err, ErrBusy)
	})
	if reply.Outcome.Kind != OutcomeForwardToBackend {
		t.Fatalf("expected text after a spoken command to be a new command, got %+v", reply)
	}
	if calls := actions.calls(); len(calls) != 1 || calls[0] != "volume up" {
		t.Fatalf("expected only the spoken action, got %v", calls)
	}
}

func TestTypedCommandBackendPanicIsContained(t *testing.T) {
	a, synth, _ := newTypedAssistant(t, WithBackend(&fakeBackend{panic: true}))

	reply := a.SubmitTypedCommand(context.Background(), "tell me a joke")
	if !errors.Is(reply.Err, ErrUnhandled) {
		t.Fatalf("expected ErrUnhandled, got %+v", reply)
	}
	if a.State() != StateIdle {
		t.Fatalf("expected idle after panic, got %v", a.State())
	}
	waitFor(t, func() bool { return slices.Equal(synth.spoken(), []string{"SOMETHING WENT WRONG"}) })
}

func TestTypedCommandWithoutBackend(t *testing.T) {
	a, _, _ := newTypedAssistant(t)

	reply := a.SubmitTypedCommand(context.Background(), "tell me a joke")
	if !errors.Is(reply.Err, ErrUnhandled) {
		t.Fatalf("expected ErrUnhandled without a backend, got %+v", reply)
	}
}

func TestTypedCommandBlankAndClosed(t *testing.T) {
	a, _, log := newTypedAssistant(t)

	if reply := a.SubmitTypedCommand(context.Background(), "   "); reply.Outcome.Kind != OutcomeUnrecognized || reply.Err != nil {
		t.Fatalf("expected blank text to be unrecognized, got %+v", reply)
	}
	if got := log.states(); len(got) != 0 {
		t.Fatalf("expected blank text not to touch state, got %v", got)
	}

	_ = a.Shutdown(time.Second)
	if reply := a.SubmitTypedCommand(context.Background(), "volume up"); !errors.Is(reply.Err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %+v", reply)
	}
}

func TestTypedCommandRecordsExchange(t *testing.T) {
	var got []Exchange
	a, _, _ := newTypedAssistant(t,
		WithActions(&fakeActions{}),
		WithExchangeCallback(func(e Exchange) { got = append(got, e) }))

	a.SubmitTypedCommand(context.Background(), "volume down")

	if len(got) != 1 || got[0].Source != SourceTyped || got[0].Reply != "VOLUME DOWN" || got[0].Outcome.Action != actionVolumeDown {
		t.Fatalf("unexpected exchanges %+v", got)
	}
}

func TestClearHistoryUsesBackend(t *testing.T) {
	backend := &fakeBackend{}
	a, _, _ := newTypedAssistant(t, WithBackend(backend))

	if err := a.ClearHistory(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if backend.clears != 1 {
		t.Fatalf("expected backend history to be cleared once, got %d", backend.clears)
	}
}
