package llms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrServiceUnavailable means the backend could not be reached or refused
// the request.
var ErrServiceUnavailable = errors.New("conversational backend unavailable")

// GenerateFunc produces the reply to text given the instructions and the
// conversation so far.
type GenerateFunc func(ctx context.Context, instructions string, history []Message, text string) (string, error)

// Conversation is the history keeping shared by the backends. Exchanges are
// serialized so history stays in order.
type Conversation struct {
	mu           sync.Mutex
	history      History
	instructions string
	maxHistory   int
}

func NewConversation(options BackendOptions) *Conversation {
	return &Conversation{
		history:      options.History,
		instructions: options.Persona.Instructions(),
		maxHistory:   options.MaxHistory,
	}
}

// Exchange asks generate for a reply to text and records both in the
// history. Nothing is recorded when generation fails.
func (c *Conversation) Exchange(ctx context.Context, text string, generate GenerateFunc) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := c.history.Messages()
	if c.maxHistory > 0 && len(history) > c.maxHistory {
		history = history[len(history)-c.maxHistory:]
	}

	reply, err := generate(ctx, c.instructions, history, text)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrServiceUnavailable)
	}

	if err := c.history.Append(NewMessage(RoleUser, text), NewMessage(RoleModel, reply)); err != nil {
		logger.Warn("Failed to save conversation history", "error", err)
	}
	return reply, nil
}

func (c *Conversation) ClearHistory() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Clear()
}

func (c *Conversation) History() []Message {
	return c.history.Messages()
}
