package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
	// DefaultFrameSize is the number of samples read from an input device per
	// frame, 32ms at the default sample rate.
	DefaultFrameSize = 512
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

// EncodingInfo describes mono PCM audio moving between devices, recognizers
// and synthesizers.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}

	return 0
}

// BytesPerSecond is the byte rate of a single channel stream in this
// encoding, or 0 when the format is unknown.
func (e EncodingInfo) BytesPerSecond() int {
	size := e.Format.ByteSize()
	if size <= 0 {
		return 0
	}
	return e.SampleRate * size
}

// SamplesDuration converts a sample count into playback time.
func (e EncodingInfo) SamplesDuration(samples int) time.Duration {
	if e.SampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(e.SampleRate)
}

// DurationSamples converts playback time into a sample count.
func (e EncodingInfo) DurationSamples(d time.Duration) int {
	return int(d * time.Duration(e.SampleRate) / time.Second)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
