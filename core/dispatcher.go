package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Actions are the platform side effects a command can trigger.
type Actions interface {
	OpenURL(ctx context.Context, url string) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	Mute(ctx context.Context) error
	// Screenshot saves a screenshot and returns where it was written.
	Screenshot(ctx context.Context) (string, error)
	MinimizeAll(ctx context.Context) error
}

// Speaker queues a phrase for speaking without waiting for it.
type Speaker interface {
	Speak(text string) bool
}

type OutcomeKind int

const (
	OutcomeHandledLocally OutcomeKind = iota
	OutcomeForwardToBackend
	OutcomeUnrecognized
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeHandledLocally:
		return "handled_locally"
	case OutcomeForwardToBackend:
		return "forward_to_backend"
	case OutcomeUnrecognized:
		return "unrecognized"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FollowUp is input the dispatcher needs from the caller to finish a
// command.
type FollowUp int

const (
	FollowUpNone FollowUp = iota
	// FollowUpSiteDestination asks for the site to open. Pass the answer to
	// OpenSite.
	FollowUpSiteDestination
)

// CommandOutcome is the single result of dispatching one text.
type CommandOutcome struct {
	Kind OutcomeKind `json:"kind"`
	// Text is the dispatched text, and the exact text to forward for
	// OutcomeForwardToBackend.
	Text     string   `json:"text"`
	Action   string   `json:"action,omitempty"`
	URL      string   `json:"url,omitempty"`
	Reply    string   `json:"reply,omitempty"`
	FollowUp FollowUp `json:"follow_up,omitempty"`
	// Err wraps ErrActionFailure when the local action failed. The outcome
	// is still HandledLocally.
	Err error `json:"-"`
}

type SiteAlias struct {
	Alias string `yaml:"alias" json:"alias"`
	URL   string `yaml:"url" json:"url"`
}

var DefaultSites = []SiteAlias{
	{Alias: "youtube", URL: "https://youtube.com"},
	{Alias: "google", URL: "https://google.com"},
	{Alias: "github", URL: "https://github.com"},
	{Alias: "gmail", URL: "https://mail.google.com"},
	{Alias: "wikipedia", URL: "https://wikipedia.org"},
}

const (
	phraseWhichSite = "WHICH SITE SHOULD I OPEN?"

	actionOpenSite    = "open_site"
	actionVolumeUp    = "volume_up"
	actionVolumeDown  = "volume_down"
	actionMute        = "mute"
	actionTime        = "time"
	actionScreenshot  = "screenshot"
	actionMinimizeAll = "minimize_all"
)

// localVerb is one row of the verb table. Rows are matched in order.
type localVerb struct {
	action   string
	keywords []string
	run      func(ctx context.Context) (reply string, err error)
	failure  string
}

// CommandDispatcher decides what a text means and triggers at most one local
// side effect. Matching is case-insensitive substring containment in a fixed
// priority order: site shortcuts, then "open site", then local verbs, and
// finally forwarding to the backend.
type CommandDispatcher struct {
	actions Actions
	speaker Speaker
	sites   []SiteAlias
	verbs   []localVerb
	now     func() time.Time
	logger  *slog.Logger
}

type DispatcherOption func(*CommandDispatcher)

// WithSites replaces the known site shortcuts. Aliases are matched in the
// given order.
func WithSites(sites ...SiteAlias) DispatcherOption {
	return func(d *CommandDispatcher) { d.sites = sites }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *CommandDispatcher) { d.now = now }
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *CommandDispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewCommandDispatcher(actions Actions, speaker Speaker, opts ...DispatcherOption) *CommandDispatcher {
	if actions == nil {
		actions = unsupportedActions{}
	}
	d := &CommandDispatcher{
		actions: actions,
		speaker: speaker,
		sites:   DefaultSites,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.verbs = []localVerb{
		{
			action:   actionVolumeUp,
			keywords: []string{"volume up"},
			run:      d.simple(d.actions.VolumeUp, "VOLUME UP"),
			failure:  "COULD NOT TURN THE VOLUME UP",
		},
		{
			action:   actionVolumeDown,
			keywords: []string{"volume down"},
			run:      d.simple(d.actions.VolumeDown, "VOLUME DOWN"),
			failure:  "COULD NOT TURN THE VOLUME DOWN",
		},
		{
			action:   actionMute,
			keywords: []string{"mute"},
			run:      d.simple(d.actions.Mute, "MUTED VOLUME"),
			failure:  "COULD NOT MUTE THE VOLUME",
		},
		{
			action:   actionTime,
			keywords: []string{"time"},
			run: func(context.Context) (string, error) {
				return "THE TIME IS " + d.now().Format("15:04"), nil
			},
		},
		{
			action:   actionScreenshot,
			keywords: []string{"screenshot", "screen shot"},
			run: func(ctx context.Context) (string, error) {
				if _, err := d.actions.Screenshot(ctx); err != nil {
					return "", err
				}
				return "SCREENSHOT SAVED", nil
			},
			failure: "COULD NOT TAKE A SCREENSHOT",
		},
		{
			action:   actionMinimizeAll,
			keywords: []string{"minimize all", "minimise all", "minimize everything", "minimize windows"},
			run:      d.simple(d.actions.MinimizeAll, "MINIMIZED ALL WINDOWS"),
			failure:  "COULD NOT MINIMIZE THE WINDOWS",
		},
	}
	return d
}

func (d *CommandDispatcher) simple(action func(context.Context) error, reply string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if err := action(ctx); err != nil {
			return "", err
		}
		return reply, nil
	}
}

// Dispatch resolves text to exactly one outcome. Confirmation and failure
// phrases of local actions are queued on the speaker; nothing is spoken for
// text forwarded to the backend.
func (d *CommandDispatcher) Dispatch(ctx context.Context, text string) (outcome CommandOutcome) {
	ctx, span := tracer.Start(ctx, "dispatch command")
	defer func() {
		span.SetAttributes(
			attribute.String("outcome", outcome.Kind.String()),
			attribute.String("action", outcome.Action),
		)
		span.End()
		metrics.dispatches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.Kind.String())))
	}()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return CommandOutcome{Kind: OutcomeUnrecognized, Text: text}
	}
	lowered := strings.ToLower(trimmed)

	if site, ok := d.matchSite(lowered); ok {
		return d.openURL(ctx, trimmed, site.URL, "OPENING "+strings.ToUpper(site.Alias))
	}

	if strings.Contains(lowered, "open site") || strings.Contains(lowered, "open website") {
		d.speak(phraseWhichSite)
		return CommandOutcome{
			Kind:     OutcomeHandledLocally,
			Text:     trimmed,
			Action:   actionOpenSite,
			Reply:    phraseWhichSite,
			FollowUp: FollowUpSiteDestination,
		}
	}

	for _, verb := range d.verbs {
		if !containsAny(lowered, verb.keywords) {
			continue
		}

		result := CommandOutcome{Kind: OutcomeHandledLocally, Text: trimmed, Action: verb.action}
		reply, err := verb.run(ctx)
		if err != nil {
			d.logger.Warn("Local action failed", "action", verb.action, "error", err)
			trace.SpanFromContext(ctx).AddEvent("local action failed",
				trace.WithAttributes(attribute.String("action", verb.action), attribute.String("error", err.Error())))
			result.Err = fmt.Errorf("%s: %w: %w", verb.action, ErrActionFailure, err)
			reply = verb.failure
		}
		result.Reply = reply
		d.speak(reply)
		return result
	}

	return CommandOutcome{Kind: OutcomeForwardToBackend, Text: trimmed}
}

// OpenSite completes an "open site" follow-up. A destination without a
// scheme is opened over https.
func (d *CommandDispatcher) OpenSite(ctx context.Context, destination string) CommandOutcome {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return CommandOutcome{Kind: OutcomeUnrecognized, Text: destination}
	}

	if site, ok := d.matchSite(strings.ToLower(destination)); ok {
		return d.openURL(ctx, destination, site.URL, "OPENING "+strings.ToUpper(site.Alias))
	}

	url := destination
	if !strings.HasPrefix(strings.ToLower(url), "http") {
		url = "https://" + strings.ReplaceAll(url, " ", "")
	}
	return d.openURL(ctx, destination, url, "OPENING SITE "+url)
}

func (d *CommandDispatcher) matchSite(lowered string) (SiteAlias, bool) {
	trimmed := strings.TrimSpace(lowered)
	for _, site := range d.sites {
		alias := strings.ToLower(site.Alias)
		if alias == "" || !strings.Contains(trimmed, alias) {
			continue
		}
		if strings.Contains(trimmed, "open") || trimmed == alias {
			return site, true
		}
	}
	return SiteAlias{}, false
}

func (d *CommandDispatcher) openURL(ctx context.Context, text, url, reply string) CommandOutcome {
	outcome := CommandOutcome{
		Kind:   OutcomeHandledLocally,
		Text:   text,
		Action: actionOpenSite,
		URL:    url,
		Reply:  reply,
	}
	if err := d.actions.OpenURL(ctx, url); err != nil {
		d.logger.Warn("Failed to open site", "url", url, "error", err)
		outcome.Err = fmt.Errorf("%s: %w: %w", actionOpenSite, ErrActionFailure, err)
		outcome.Reply = "COULD NOT OPEN " + url
	}
	d.speak(outcome.Reply)
	return outcome
}

func (d *CommandDispatcher) speak(text string) {
	if d.speaker == nil {
		return
	}
	d.speaker.Speak(text)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

var errNoActions = errors.New("no platform actions configured")

type unsupportedActions struct{}

func (unsupportedActions) OpenURL(context.Context, string) error      { return errNoActions }
func (unsupportedActions) VolumeUp(context.Context) error             { return errNoActions }
func (unsupportedActions) VolumeDown(context.Context) error           { return errNoActions }
func (unsupportedActions) Mute(context.Context) error                 { return errNoActions }
func (unsupportedActions) Screenshot(context.Context) (string, error) { return "", errNoActions }
func (unsupportedActions) MinimizeAll(context.Context) error          { return errNoActions }
