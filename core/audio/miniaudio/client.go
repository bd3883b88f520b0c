package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/pixel-core/core/audio"
)

// Client owns a miniaudio context with one capture and one playback device.
// It satisfies audio.FrameSource for the microphone and plays synthesized
// speech.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.playbackClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.captureClient.Init(audioCtx, audio.DefaultFrameSize); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

func (c *Client) Start() error { return c.captureClient.Start() }

func (c *Client) Stop() error { return c.captureClient.Stop() }

func (c *Client) Read() ([]int16, error) { return c.captureClient.Read() }

// Play queues the audio on the playback device and blocks until it has been
// played. Cancelling ctx drops whatever has not been played yet.
func (c *Client) Play(ctx context.Context, pcm []byte) error {
	if err := c.playbackClient.Start(); err != nil {
		return err
	}
	if err := c.playbackClient.SendAudio(pcm); err != nil {
		return err
	}

	played := make(chan struct{})
	c.playbackClient.Mark("played", func(string) { close(played) })

	select {
	case <-played:
		return nil
	case <-ctx.Done():
		c.playbackClient.ClearBuffer()
		return ctx.Err()
	}
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
