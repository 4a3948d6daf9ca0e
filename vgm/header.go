// Package vgm reads VGM register logs and converts their SN76489 part into
// psg command streams.
package vgm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// SampleRate is the fixed VGM timing base.
const SampleRate = 44100

const (
	ident         = "Vgm "
	minHeaderSize = 0x40

	offEOF          = 0x04
	offVersion      = 0x08
	offSNClock      = 0x0C
	offGD3          = 0x14
	offTotalSamples = 0x18
	offLoop         = 0x1C
	offLoopSamples  = 0x20
	offRate         = 0x24
	offFeedback     = 0x28
	offShiftWidth   = 0x2A
	offSNFlags      = 0x2B
	offData         = 0x34

	clockMask    = 0x3FFFFFFF
	dualChipBit  = 0x40000000
	defaultTap   = 0x0009
	defaultWidth = 16
)

var (
	// ErrUnsupportedSource is returned for data that is not a VGM log
	// with an SN76489 part.
	ErrUnsupportedSource = errors.New("vgm: unsupported source")

	// ErrTruncated is returned when a command runs past the end of the data.
	ErrTruncated = errors.New("vgm: truncated command data")
)

// Header holds the VGM header fields relevant to the SN76489. Offsets are
// absolute file positions; zero means absent.
type Header struct {
	Version      uint32
	EOFOffset    int
	SNClock      int
	DualChip     bool
	GD3Offset    int
	TotalSamples uint32
	LoopOffset   int
	LoopSamples  uint32
	Rate         uint32

	// NoiseFeedback is the white noise tap mask and ShiftWidth the LFSR
	// width. Both fall back to the Sega defaults for old files.
	NoiseFeedback uint16
	ShiftWidth    int
	SNFlags       uint8

	DataOffset int
}

// Duration returns the play time of one pass without loops.
func (h Header) Duration() time.Duration {
	return time.Duration(h.TotalSamples) * time.Second / SampleRate
}

// LoopDuration returns the length of the looped section.
func (h Header) LoopDuration() time.Duration {
	return time.Duration(h.LoopSamples) * time.Second / SampleRate
}

// VersionString formats the BCD version, e.g. "1.50".
func (h Header) VersionString() string {
	return fmt.Sprintf("%x.%02x", h.Version>>8, h.Version&0xFF)
}

func relative(data []byte, at int) int {
	v := binary.LittleEndian.Uint32(data[at:])
	if v == 0 {
		return 0
	}
	return at + int(v)
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < minHeaderSize || string(data[:4]) != ident {
		return Header{}, fmt.Errorf("%w: missing %q identifier", ErrUnsupportedSource, ident)
	}

	le := binary.LittleEndian
	clock := le.Uint32(data[offSNClock:])
	h := Header{
		Version:       le.Uint32(data[offVersion:]),
		EOFOffset:     relative(data, offEOF),
		SNClock:       int(clock & clockMask),
		DualChip:      clock&dualChipBit != 0,
		GD3Offset:     relative(data, offGD3),
		TotalSamples:  le.Uint32(data[offTotalSamples:]),
		LoopOffset:    relative(data, offLoop),
		LoopSamples:   le.Uint32(data[offLoopSamples:]),
		Rate:          le.Uint32(data[offRate:]),
		NoiseFeedback: defaultTap,
		ShiftWidth:    defaultWidth,
	}
	if h.SNClock == 0 {
		return Header{}, fmt.Errorf("%w: the music is not composed for the SN76489", ErrUnsupportedSource)
	}

	if h.Version >= 0x110 {
		if fb := le.Uint16(data[offFeedback:]); fb != 0 {
			h.NoiseFeedback = fb
		}
		if w := int(data[offShiftWidth]); w != 0 {
			h.ShiftWidth = w
		}
	}
	if h.Version >= 0x151 {
		h.SNFlags = data[offSNFlags]
	}

	h.DataOffset = minHeaderSize
	if h.Version >= 0x150 {
		if d := relative(data, offData); d != 0 {
			h.DataOffset = d
		}
	}
	if h.DataOffset >= len(data) {
		return Header{}, fmt.Errorf("%w: data offset 0x%X beyond %d byte file", ErrTruncated, h.DataOffset, len(data))
	}
	if h.EOFOffset <= h.DataOffset || h.EOFOffset > len(data) {
		h.EOFOffset = 0
	}
	if h.LoopOffset != 0 && h.LoopOffset < h.DataOffset {
		return Header{}, fmt.Errorf("%w: loop offset 0x%X before data offset 0x%X", ErrUnsupportedSource, h.LoopOffset, h.DataOffset)
	}

	return h, nil
}
