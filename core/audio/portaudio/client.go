package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/pixel-core/core/audio"
)

// Client is a duplex PortAudio device. It captures frames for an
// audio.Microphone and plays linear16 audio produced by a synthesizer.
type Client struct {
	mu         sync.Mutex
	bufferSize int
	stream     *portaudio.Stream
	running    bool

	in  []int16
	out []int16

	frame []int16
}

func NewClient(bufferSize int) (*Client, error) {
	if bufferSize <= 0 {
		bufferSize = audio.DefaultFrameSize
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
		frame:      make([]int16, bufferSize),
	}, nil
}

func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start()
}

func (c *Client) start() error {
	if c.running {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}
	c.running = true
	return nil
}

// Read blocks until the next frame is captured. The returned slice is reused
// by the following Read.
func (c *Client) Read() ([]int16, error) {
	if err := c.stream.Read(); err != nil {
		return nil, fmt.Errorf("failed to read from portaudio stream: %w", err)
	}
	copy(c.frame, c.in)
	return c.frame, nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

// Play writes the audio to the output device and returns once the last
// buffer has been handed to PortAudio. Audio not filling a whole buffer is
// padded with silence.
func (c *Client) Play(ctx context.Context, pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasRunning := c.running
	if err := c.start(); err != nil {
		return err
	}
	if !wasRunning {
		defer func() {
			c.running = false
			_ = c.stream.Stop()
		}()
	}

	bufferSize := c.bufferSize * 2
	for offset := 0; offset < len(pcm); offset += bufferSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := pcm[offset:min(offset+bufferSize, len(pcm))]
		if len(chunk) < bufferSize {
			padded := make([]byte, bufferSize)
			copy(padded, chunk)
			chunk = padded
		}

		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, c.out); err != nil {
			return fmt.Errorf("failed to decode audio chunk: %w", err)
		}
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	err := c.stream.Close()
	portaudio.Terminate()
	return err
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
