package llms

import (
	"strings"
	"sync"

	"github.com/jinzhu/copier"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of the conversation. The JSON form is the one the
// transcript file uses: {"role": "user", "parts": ["..."]}.
type Message struct {
	Role  Role     `json:"role"`
	Parts []string `json:"parts"`
}

func NewMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []string{text}}
}

func (m Message) Text() string {
	return strings.Join(m.Parts, "\n")
}

// History keeps the conversation between exchanges.
type History interface {
	Messages() []Message
	Append(messages ...Message) error
	Clear() error
}

// CloneMessages deep copies messages so callers can't alias each other's
// parts.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	var clone []Message
	if err := copier.CopyWithOption(&clone, messages, copier.Option{DeepCopy: true}); err != nil {
		logger.Warn("Failed to copy messages", "error", err)
		return append([]Message(nil), messages...)
	}
	return clone
}

// MemoryHistory is a History that lives only as long as the process.
type MemoryHistory struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemoryHistory(messages ...Message) *MemoryHistory {
	return &MemoryHistory{messages: CloneMessages(messages)}
}

func (h *MemoryHistory) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return CloneMessages(h.messages)
}

func (h *MemoryHistory) Append(messages ...Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, CloneMessages(messages)...)
	return nil
}

func (h *MemoryHistory) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
	return nil
}
