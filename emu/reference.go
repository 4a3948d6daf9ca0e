package emu

import (
	"github.com/user-none/emsn/psg"
	"github.com/user-none/go-chip-sn76489"
)

// referenceGain scales the library's unit amplitude to the native chip's
// full scale channel level.
const referenceGain = 8000.0

// ReferenceChip adapts the cycle stepped go-chip-sn76489 model (Sega
// variant) to Engine. Its output is unipolar and mono; in stereo mode the
// mono signal is duplicated to both channels and panning is ignored.
type ReferenceChip struct {
	chip       *sn76489.SN76489
	clock      int
	sampleRate int
	stereo     bool

	// input clocks carried between samples, in units of 1/sampleRate
	clockAcc int
}

// NewReferenceChip creates a reference engine clocked at clock Hz
// rendering at sampleRate.
func NewReferenceChip(clock, sampleRate int, stereo bool) *ReferenceChip {
	if clock <= 0 {
		clock = DefaultClock
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	chip := sn76489.New(clock, sampleRate, 1, sn76489.Sega)
	chip.SetGain(referenceGain)
	return &ReferenceChip{
		chip:       chip,
		clock:      clock,
		sampleRate: sampleRate,
		stereo:     stereo,
	}
}

// Reset implements Engine. Attenuation registers keep their values; the
// library does not clear them.
func (r *ReferenceChip) Reset() {
	r.chip.Reset()
	for i := 0; i < 4; i++ {
		r.chip.Write(psg.LatchByte(psg.Register(i*2+1), 0x0F))
	}
	r.clockAcc = 0
}

// Channels implements Engine.
func (r *ReferenceChip) Channels() int {
	if r.stereo {
		return 2
	}
	return 1
}

// Write passes a raw chip port byte to the model.
func (r *ReferenceChip) Write(b byte) {
	r.chip.Write(b)
}

// WriteRegister implements Engine by replaying the port writes that set
// the register.
func (r *ReferenceChip) WriteRegister(reg psg.Register, value uint16) {
	reg &= 7
	r.chip.Write(psg.LatchByte(reg, value))
	if reg.IsTone() {
		r.chip.Write(psg.DataByte(value))
	}
}

// SetPanning implements Engine. The reference model has no stereo mixer.
func (r *ReferenceChip) SetPanning(ch int, pan int) {}

// Registers returns the register values held by the model.
func (r *ReferenceChip) Registers() [psg.RegisterCount]uint16 {
	var regs [psg.RegisterCount]uint16
	for ch := 0; ch < 3; ch++ {
		regs[ch*2] = r.chip.GetToneReg(ch)
		regs[ch*2+1] = uint16(r.chip.GetVolume(ch))
	}
	regs[psg.NoiseControl] = uint16(r.chip.GetNoiseReg())
	regs[psg.NoiseAttenuation] = uint16(r.chip.GetVolume(3))
	return regs
}

// Render implements Engine.
func (r *ReferenceChip) Render(out []int16, samples int, attenuation int) {
	if attenuation < 1 {
		attenuation = 1
	}
	ch := r.Channels()
	if limit := len(out) / ch; samples > limit {
		samples = limit
	}

	for n := 0; n < samples; n++ {
		r.clockAcc += r.clock
		clocks := r.clockAcc / r.sampleRate
		r.clockAcc -= clocks * r.sampleRate
		for i := 0; i < clocks; i++ {
			r.chip.Clock()
		}

		v := int(r.chip.Sample()) / attenuation
		if r.stereo {
			mixInto(out, n*2, v)
			mixInto(out, n*2+1, v)
		} else {
			mixInto(out, n, v)
		}
	}
}
