package assistant

import (
	"context"
	"strings"
	"time"
)

// Reply is the result of a typed command.
type Reply struct {
	// Text is what was spoken back: the local confirmation or the backend's
	// answer.
	Text    string
	Outcome CommandOutcome
	Err     error
}

// SubmitTypedCommand runs text through the same dispatch and backend path as
// a spoken command without using the microphone. It takes the interaction
// over like the listener would, so it fails with ErrBusy while a spoken
// interaction is in progress. While listening is muted it runs without
// touching the state.
//
// After an "open site" command the next typed text is taken as the site to
// open, as long as it arrives within one command capture window and no
// spoken command came in between.
func (a *VoiceAssistant) SubmitTypedCommand(ctx context.Context, text string) Reply {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return Reply{Err: ErrClosed}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Outcome: CommandOutcome{Kind: OutcomeUnrecognized}}
	}

	a.typedMu.Lock()
	defer a.typedMu.Unlock()

	if !a.state.CompareAndTransition(StateIdle, StateWakeDetected) {
		if a.state.Current() != StateSuspended {
			return Reply{Err: ErrBusy}
		}
		return a.typed(ctx, text)
	}
	defer a.finishInteraction(false)

	a.state.Transition(StateProcessing)
	return a.typed(ctx, text)
}

func (a *VoiceAssistant) typed(ctx context.Context, text string) Reply {
	pending := time.Now().Before(a.pendingSiteUntil)
	a.pendingSiteUntil = time.Time{}
	if pending {
		return a.process(ctx, SourceTyped, text, a.dispatcher.OpenSite)
	}

	reply := a.process(ctx, SourceTyped, text, a.dispatcher.Dispatch)
	if reply.Outcome.FollowUp == FollowUpSiteDestination {
		a.pendingSiteUntil = time.Now().Add(a.timings.CommandTimeout + a.timings.CommandPhraseLimit)
	}
	return reply
}

// clearPendingSite drops a typed "open site" still waiting for its
// destination.
func (a *VoiceAssistant) clearPendingSite() {
	a.typedMu.Lock()
	defer a.typedMu.Unlock()
	a.pendingSiteUntil = time.Time{}
}
