package miniaudio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/pixel-core/core/audio"
)

const (
	// captureBacklog is the number of device periods buffered between the
	// device callback and Read. Older periods are dropped when it overflows.
	captureBacklog = 64
	readTimeout    = 2 * time.Second
)

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	periods   chan []byte
	frameSize int
	pending   []int16
	frame     []int16

	mu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, frameSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = sampleRate
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	c.audioContext = audioContext
	c.frameSize = frameSize
	c.frame = make([]int16, frameSize)
	c.periods = make(chan []byte, captureBacklog)

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			period := make([]byte, n)
			copy(period, pInput[:n])
			select {
			case c.periods <- period:
			default:
				logger.Debug("capture backlog full, dropping period")
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	c.drain()
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

// Read assembles the next frameSize samples from the captured periods.
func (c *captureClient) Read() ([]int16, error) {
	for len(c.pending) < c.frameSize {
		select {
		case period := <-c.periods:
			for i := 0; i+1 < len(period); i += 2 {
				c.pending = append(c.pending, int16(binary.LittleEndian.Uint16(period[i:])))
			}
		case <-time.After(readTimeout):
			return nil, fmt.Errorf("no audio from capture device for %v", readTimeout)
		}
	}

	copy(c.frame, c.pending[:c.frameSize])
	c.pending = c.pending[c.frameSize:]
	return c.frame, nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	c.drain()
	return nil
}

// drain discards audio captured during a previous listen.
func (c *captureClient) drain() {
	c.pending = c.pending[:0]
	for {
		select {
		case <-c.periods:
		default:
			return
		}
	}
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	return nil
}
