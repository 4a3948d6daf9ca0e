package emu

import "github.com/user-none/emsn/psg"

const (
	clockDivisor      = 16
	noiseDefaultTap   = 0x0009
	noiseDefaultWidth = 16
	maxPan            = 127
	panScale          = 254
)

// Amplitude per attenuation step, 2dB apart. 15 is silence.
var amplitudeTable = [16]int{
	8000, 6355, 5048, 4009, 3185, 2530, 2010, 1596,
	1268, 1007, 800, 635, 505, 401, 318, 0,
}

// noisePeriods are the shift periods in divided clock cycles for noise
// rates 0-2. Rate 3 follows tone channel 2.
var noisePeriods = [3]int{32, 64, 128}

// Chip is a counter based SN76489 model producing bipolar square waves.
type Chip struct {
	clock      int
	sampleRate int
	stereo     bool

	regs psg.RegisterFile

	clockCounter int

	frequency [3]int
	counter   [3]int
	output    [3]int
	amplitude [4]int
	pan       [4]int

	noiseShift   uint16
	noiseTap     uint16
	noiseWidth   uint
	noiseControl uint16
	noiseCounter int
	noiseOutput  int
}

// NewChip creates a chip clocked at clock Hz rendering at sampleRate.
func NewChip(clock, sampleRate int, stereo bool) *Chip {
	if clock <= 0 {
		clock = DefaultClock
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	c := &Chip{
		clock:      clock,
		sampleRate: sampleRate,
		stereo:     stereo,
		noiseTap:   noiseDefaultTap,
		noiseWidth: noiseDefaultWidth,
	}
	c.Reset()
	return c
}

// Reset returns the chip to its initial state. All channels are silent
// until their attenuation is written. The noise tap and width are kept.
func (c *Chip) Reset() {
	c.regs.Reset()
	c.clockCounter = 0
	for i := 0; i < 3; i++ {
		c.frequency[i] = 1
		c.counter[i] = 0
		c.output[i] = 1
	}
	c.amplitude = [4]int{}
	c.pan = [4]int{}
	c.noiseShift = c.noiseSeed()
	c.noiseControl = 0
	c.noiseCounter = 0
	c.noiseOutput = noiseBit(c.noiseShift)
}

// SetNoiseTap sets the white noise feedback mask. Zero restores the default.
func (c *Chip) SetNoiseTap(tap uint16) {
	if tap == 0 {
		tap = noiseDefaultTap
	}
	c.noiseTap = tap
}

// SetNoiseWidth sets the length of the noise shift register in bits. Widths
// outside 1-16 restore the default of 16. The register is reseeded.
func (c *Chip) SetNoiseWidth(width int) {
	if width < 1 || width > 16 {
		width = noiseDefaultWidth
	}
	c.noiseWidth = uint(width)
	c.noiseShift = c.noiseSeed()
	c.noiseOutput = noiseBit(c.noiseShift)
}

// noiseSeed is the shift register value after a reset or noise write.
func (c *Chip) noiseSeed() uint16 {
	return 1 << (c.noiseWidth - 1)
}

// Channels implements Engine.
func (c *Chip) Channels() int {
	if c.stereo {
		return 2
	}
	return 1
}

// Registers returns the chip's register values.
func (c *Chip) Registers() [psg.RegisterCount]uint16 {
	return c.regs.Values()
}

// Write applies a raw chip port byte.
func (c *Chip) Write(b byte) {
	if r, v, ok := c.regs.Write(b); ok {
		c.apply(r, v)
	}
}

// WriteRegister implements Engine.
func (c *Chip) WriteRegister(r psg.Register, value uint16) {
	r &= 7
	c.regs.Set(r, value)
	c.apply(r, c.regs.Get(r))
}

func (c *Chip) apply(r psg.Register, v uint16) {
	switch {
	case r.IsTone():
		c.frequency[r.Channel()] = int(v)
	case r.IsAttenuation():
		c.amplitude[r.Channel()] = amplitudeTable[v&0x0F]
	default:
		c.noiseControl = v & 0x07
		c.noiseShift = c.noiseSeed()
		c.noiseOutput = noiseBit(c.noiseShift)
	}
}

// SetPanning implements Engine.
func (c *Chip) SetPanning(ch int, pan int) {
	if ch < 0 || ch > 3 {
		return
	}
	if pan < -maxPan {
		pan = -maxPan
	}
	if pan > maxPan {
		pan = maxPan
	}
	c.pan[ch] = pan
}

// Render implements Engine. Output is added to the existing contents of
// out and clamped to the int16 range.
func (c *Chip) Render(out []int16, samples int, attenuation int) {
	if attenuation < 1 {
		attenuation = 1
	}
	ch := c.Channels()
	if limit := len(out) / ch; samples > limit {
		samples = limit
	}

	var sample [4]int
	for n := 0; n < samples; n++ {
		cycles := c.advanceClock()

		for i := 0; i < 3; i++ {
			c.stepTone(i, cycles)
			sample[i] = c.output[i] * c.amplitude[i]
		}
		c.stepNoise(cycles)
		sample[3] = c.noiseOutput * c.amplitude[3]

		if c.stereo {
			var left, right int
			for i := 0; i < 4; i++ {
				left += sample[i] * (maxPan - c.pan[i]) / panScale
				right += sample[i] * (maxPan + c.pan[i]) / panScale
			}
			mixInto(out, n*2, left/attenuation)
			mixInto(out, n*2+1, right/attenuation)
		} else {
			sum := sample[0] + sample[1] + sample[2] + sample[3]
			mixInto(out, n, sum/attenuation)
		}
	}
}

// advanceClock moves the clock accumulator one output sample forward and
// returns the whole divided chip cycles that elapsed.
func (c *Chip) advanceClock() int {
	c.clockCounter += c.clock / clockDivisor
	cycles := c.clockCounter / c.sampleRate
	c.clockCounter -= cycles * c.sampleRate
	return cycles
}

func (c *Chip) stepTone(i, cycles int) {
	f := c.frequency[i]
	if f == 0 || f == 1 {
		c.output[i] = 1
		return
	}
	if c.counter[i] >= cycles {
		c.counter[i] -= cycles
		return
	}
	clock := cycles
	for c.counter[i] < clock {
		c.output[i] = -c.output[i]
		clock -= c.counter[i]
		c.counter[i] = f
	}
	c.counter[i] -= clock
}

func (c *Chip) noisePeriod() int {
	rate := c.noiseControl & 0x03
	if rate < 3 {
		return noisePeriods[rate]
	}
	p := 2 * c.frequency[2]
	if p < 1 {
		p = 1
	}
	return p
}

func (c *Chip) stepNoise(cycles int) {
	c.noiseCounter -= cycles
	if c.noiseCounter < 0 {
		period := c.noisePeriod()
		for c.noiseCounter < 0 {
			c.noiseCounter += period
			c.shiftNoise()
		}
	}
	c.noiseOutput = noiseBit(c.noiseShift)
}

func (c *Chip) shiftNoise() {
	var feedback uint16
	if c.noiseControl&0x04 != 0 {
		feedback = parity(c.noiseShift & c.noiseTap)
	} else {
		feedback = c.noiseShift & 1
	}
	c.noiseShift = c.noiseShift>>1 | feedback<<(c.noiseWidth-1)
}

func noiseBit(shift uint16) int {
	if shift&1 == 0 {
		return -1
	}
	return 1
}

func parity(v uint16) uint16 {
	v ^= v >> 8
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v & 1
}

func mixInto(out []int16, i int, v int) {
	out[i] = int16(clampInt32(int32(out[i])+int32(v), -32768, 32767))
}
