package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	assistant "github.com/koscakluka/pixel-core/core"
)

type stateResponse struct {
	State assistant.State `json:"state"`
	Muted bool            `json:"muted"`
}

type controlResponse struct {
	stateResponse
	Changed bool `json:"changed"`
}

type textRequest struct {
	Text string `json:"text" binding:"required"`
}

type commandResponse struct {
	Reply   string                   `json:"reply,omitempty"`
	Outcome assistant.CommandOutcome `json:"outcome"`
	Error   string                   `json:"error,omitempty"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

func (s *Server) handleMute(c *gin.Context) {
	c.JSON(http.StatusOK, controlResponse{Changed: s.assistant.MuteBackgroundListening(), stateResponse: s.snapshot()})
}

func (s *Server) handleResume(c *gin.Context) {
	c.JSON(http.StatusOK, controlResponse{Changed: s.assistant.Resume(), stateResponse: s.snapshot()})
}

func (s *Server) handleToggle(c *gin.Context) {
	s.assistant.ToggleMute()
	c.JSON(http.StatusOK, controlResponse{Changed: true, stateResponse: s.snapshot()})
}

func (s *Server) handleCommand(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}

	reply := s.assistant.SubmitTypedCommand(c.Request.Context(), req.Text)
	resp := commandResponse{Reply: reply.Text, Outcome: reply.Outcome}
	if reply.Err != nil {
		resp.Error = reply.Err.Error()
	}

	switch {
	case errors.Is(reply.Err, assistant.ErrBusy):
		c.JSON(http.StatusConflict, resp)
	case errors.Is(reply.Err, assistant.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, resp)
	default:
		// Failed actions and backend errors were already answered out loud;
		// they are reported in the body.
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleSpeak(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}
	if !s.assistant.Speak(req.Text) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "nothing to speak or speech output closed"})
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) handleClearHistory(c *gin.Context) {
	if err := s.assistant.ClearHistory(); err != nil {
		s.logger.Error("Failed to clear history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) snapshot() stateResponse {
	return stateResponse{State: s.assistant.State(), Muted: s.assistant.Muted()}
}
