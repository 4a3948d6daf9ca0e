// Package emu renders PSG register writes to PCM and paces command stream
// playback into a buffered audio sink.
package emu

import (
	"fmt"

	"github.com/user-none/emsn/psg"
)

// Chip and playback defaults.
const (
	DefaultClock      = 3579545
	DefaultSampleRate = 44100
	DefaultFrameRate  = psg.DefaultFrameRate
)

// Engine is a sound chip model that turns register writes into samples.
type Engine interface {
	// Reset returns the chip to its power-on state.
	Reset()
	// WriteRegister stores a full register value.
	WriteRegister(r psg.Register, value uint16)
	// SetPanning sets the stereo position of a channel (0-3), from -127
	// (left) through 0 (center) to 127 (right).
	SetPanning(ch int, pan int)
	// Render adds samples frames of output to out, scaled down by
	// attenuation. Stereo engines write interleaved left/right pairs.
	Render(out []int16, samples int, attenuation int)
	// Channels returns 1 for mono output or 2 for stereo.
	Channels() int
}

// EngineKind names an Engine implementation.
type EngineKind string

const (
	EngineNative    EngineKind = "native"
	EngineReference EngineKind = "reference"
)

// NewEngine creates the named engine.
func NewEngine(kind EngineKind, clock, sampleRate int, stereo bool) (Engine, error) {
	switch kind {
	case "", EngineNative:
		return NewChip(clock, sampleRate, stereo), nil
	case EngineReference:
		return NewReferenceChip(clock, sampleRate, stereo), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", kind)
	}
}
