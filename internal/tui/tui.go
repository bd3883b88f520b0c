package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/pixel-core/core/events"
)

// Subscriber is implemented by assistants that publish their events.
type Subscriber interface {
	Subscribe(fn func(events.Event)) (remove func())
}

// Run shows the chat window until the user quits or ctx is done.
func Run(ctx context.Context, controller Controller, name string) error {
	program := tea.NewProgram(NewModel(controller, name), tea.WithAltScreen(), tea.WithContext(ctx))

	if subscriber, ok := controller.(Subscriber); ok {
		// The program only takes messages while its loop runs, and
		// subscribers must not block the assistant.
		pending := make(chan events.Event, 64)
		remove := subscriber.Subscribe(func(event events.Event) {
			select {
			case pending <- event:
			default:
			}
		})
		defer remove()

		forwardCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			for {
				select {
				case <-forwardCtx.Done():
					return
				case event := <-pending:
					program.Send(eventMsg{event: event})
				}
			}
		}()
	}

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat window failed: %w", err)
	}
	return nil
}
