package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/pixel-core/core/events"
)

// handleEvents upgrades to a websocket and streams every assistant event
// as a JSON envelope. The first message is the current state. Events are
// dropped for a client that falls too far behind.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade event stream", "error", err)
		return
	}
	defer conn.Close()

	stream := make(chan events.Event, s.eventBuffer)
	remove := s.assistant.Subscribe(func(event events.Event) {
		select {
		case stream <- event:
		default:
			s.logger.Warn("Event stream client is behind, dropping event", "kind", event.Kind())
		}
	})
	defer remove()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	current := s.assistant.State().String()
	if err := s.write(conn, events.NewStateChanged(current, current)); err != nil {
		return
	}

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case event := <-stream:
			if err := s.write(conn, event); err != nil {
				s.logger.Debug("Event stream closed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, event events.Event) error {
	data, err := events.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode event", "kind", event.Kind(), "error", err)
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
