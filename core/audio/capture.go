package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// ErrNoSpeech is returned by a listen that did not hear speech begin before
// its timeout elapsed.
var ErrNoSpeech = errors.New("no speech within timeout")

const wavPCMFormat = 1

// Capture is the result of one microphone acquisition. It is produced by a
// listen and consumed right away by recognition; nothing retains it.
type Capture struct {
	ID        string
	Samples   []int16
	Encoding  EncodingInfo
	StartedAt time.Time
	Duration  time.Duration
}

func newCapture(samples []int16, encoding EncodingInfo, startedAt time.Time) *Capture {
	return &Capture{
		ID:        uuid.NewString(),
		Samples:   samples,
		Encoding:  encoding,
		StartedAt: startedAt,
		Duration:  encoding.SamplesDuration(len(samples)),
	}
}

// NewCapture wraps already recorded linear16 samples.
func NewCapture(samples []int16, encoding EncodingInfo) *Capture {
	if encoding.IsZero() {
		encoding = GetDefaultEncodingInfo()
	}
	return newCapture(samples, encoding, time.Now())
}

func (c *Capture) IsEmpty() bool { return c == nil || len(c.Samples) == 0 }

// Bytes returns the samples as little-endian linear16 audio.
func (c *Capture) Bytes() []byte {
	if c.IsEmpty() {
		return nil
	}

	audioBuffer := bytes.Buffer{}
	audioBuffer.Grow(len(c.Samples) * 2)
	_ = binary.Write(&audioBuffer, binary.LittleEndian, c.Samples)
	return audioBuffer.Bytes()
}

// Float32 returns the samples normalised to [-1, 1).
func (c *Capture) Float32() []float32 {
	if c.IsEmpty() {
		return nil
	}

	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// WriteWAV encodes the capture as a 16-bit mono WAV file.
func (c *Capture) WriteWAV(w io.WriteSeeker) error {
	if c == nil {
		return fmt.Errorf("capture is nil")
	}

	sampleRate := c.Encoding.SampleRate
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}

	data := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		data[i] = int(s)
	}

	encoder := wav.NewEncoder(w, sampleRate, 16, 1, wavPCMFormat)
	if err := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return fmt.Errorf("failed to encode wav samples: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalise wav file: %w", err)
	}
	return nil
}
