package audio

import (
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

const (
	defaultEnergyThreshold   = 300.0
	defaultDynamicDamping    = 0.15
	defaultDynamicRatio      = 1.5
	defaultMinVoiceBandRatio = 0.35

	voiceBandLowHz  = 300.0
	voiceBandHighHz = 3400.0
)

// activityDetector decides whether a frame carries speech. A frame counts as
// speech when its energy is above the (calibrated) threshold and most of that
// energy sits in the voice band.
type activityDetector struct {
	energyThreshold   float64
	dynamicDamping    float64
	dynamicRatio      float64
	minVoiceBandRatio float64
}

func newActivityDetector() activityDetector {
	return activityDetector{
		energyThreshold:   defaultEnergyThreshold,
		dynamicDamping:    defaultDynamicDamping,
		dynamicRatio:      defaultDynamicRatio,
		minVoiceBandRatio: defaultMinVoiceBandRatio,
	}
}

func (d *activityDetector) isSpeech(frame []int16, sampleRate int) bool {
	if rms(frame) <= d.energyThreshold {
		return false
	}
	if d.minVoiceBandRatio <= 0 {
		return true
	}
	return voiceBandRatio(frame, sampleRate) >= d.minVoiceBandRatio
}

// adjust moves the energy threshold toward the energy of an ambient frame.
// The damping is scaled by the frame duration so calibration converges at the
// same speed regardless of frame size.
func (d *activityDetector) adjust(frame []int16, frameDuration time.Duration) {
	damping := math.Pow(d.dynamicDamping, frameDuration.Seconds())
	target := rms(frame) * d.dynamicRatio
	d.energyThreshold = d.energyThreshold*damping + target*(1-damping)
}

func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// voiceBandRatio is the share of spectral power between 300Hz and 3.4kHz.
func voiceBandRatio(frame []int16, sampleRate int) float64 {
	if len(frame) < 2 || sampleRate <= 0 {
		return 0
	}

	samples := make([]float64, len(frame))
	for i, s := range frame {
		samples[i] = float64(s)
	}

	spectrum := fft.FFTReal(samples)
	binWidth := float64(sampleRate) / float64(len(samples))

	var total, band float64
	for i := 1; i < len(spectrum)/2; i++ {
		magnitude := cmplx.Abs(spectrum[i])
		power := magnitude * magnitude
		total += power

		frequency := float64(i) * binWidth
		if frequency >= voiceBandLowHz && frequency <= voiceBandHighHz {
			band += power
		}
	}

	if total == 0 {
		return 0
	}
	return band / total
}
