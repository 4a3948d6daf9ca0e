package emu

import "math"

// lowPass is a first-order RC low-pass filter over interleaved PCM.
// State persists across buffers so consecutive buffers join smoothly.
type lowPass struct {
	alpha    float64
	channels int
	prev     [2]float64
}

// newLowPass creates a filter with cutoff fc Hz, or nil if fc is not positive.
// Derived from: alpha = dt / (RC + dt) where RC = 1/(2*pi*fc).
func newLowPass(fc float64, sampleRate, channels int) *lowPass {
	if fc <= 0 || sampleRate <= 0 {
		return nil
	}
	if channels < 1 || channels > 2 {
		channels = 1
	}
	return &lowPass{
		alpha:    1.0 / (float64(sampleRate)/(2*math.Pi*fc) + 1),
		channels: channels,
	}
}

// apply filters buf in place.
func (f *lowPass) apply(buf []int16) {
	if f == nil {
		return
	}
	for i := 0; i+f.channels <= len(buf); i += f.channels {
		for ch := 0; ch < f.channels; ch++ {
			in := float64(buf[i+ch])
			f.prev[ch] = f.alpha*in + (1-f.alpha)*f.prev[ch]
			buf[i+ch] = int16(math.Round(f.prev[ch]))
		}
	}
}

func (f *lowPass) reset() {
	if f != nil {
		f.prev = [2]float64{}
	}
}

// clampInt32 clamps v to [min, max].
func clampInt32(v, min, max int32) int32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
