// Package psg implements the PSG command stream: a byte log of SN76489
// register writes with frame markers, an optional loop point and an optional
// back-reference compression layer.
//
// Byte classes, matched in this order:
//
//	1rrr xxxx  latch register r, low nibble xxxx
//	01xx xxxx  data: high 6 bits of the latched tone register
//	0000 0000  end of stream
//	0000 0001  loop start
//	0000 0010  reserved (0x02-0x07)
//	0000 1xxx  back-reference, 0x08-0x37: length = code-8+4, LE word offset follows
//	0011 1nnn  end of frame, wait nnn+1 frames
package psg

const (
	EndOfStreamCode byte = 0x00
	LoopStartCode   byte = 0x01

	refCodeBase   byte = 0x08
	refCodeLast   byte = 0x37
	frameCodeBase byte = 0x38

	// MinRefLength and MaxRefLength bound the length of a back-reference.
	MinRefLength = 4
	MaxRefLength = 51

	// MaxRefOffset is the largest offset the 16-bit operand can address.
	MaxRefOffset = 0xFFFF

	// MaxWaitFrames is the longest wait a single end-of-frame byte can carry.
	MaxWaitFrames = 8

	refSize = 3
)

// RegisterCount is the number of logical chip registers.
const RegisterCount = 8

// Register identifies one of the 8 logical chip registers by its latch index.
type Register uint8

const (
	Tone0 Register = iota
	Attenuation0
	Tone1
	Attenuation1
	Tone2
	Attenuation2
	NoiseControl
	NoiseAttenuation
)

// IsTone reports whether r is one of the three 10-bit tone registers.
func (r Register) IsTone() bool {
	return r&1 == 0 && r != NoiseControl
}

// IsAttenuation reports whether r is a 4-bit attenuation register.
func (r Register) IsAttenuation() bool {
	return r&1 == 1
}

// Channel returns the voice the register belongs to (0-2 tone, 3 noise).
func (r Register) Channel() int {
	return int(r >> 1)
}

func (r Register) String() string {
	switch r {
	case Tone0:
		return "tone0"
	case Attenuation0:
		return "att0"
	case Tone1:
		return "tone1"
	case Attenuation1:
		return "att1"
	case Tone2:
		return "tone2"
	case Attenuation2:
		return "att2"
	case NoiseControl:
		return "noise"
	case NoiseAttenuation:
		return "noiseatt"
	default:
		return "?"
	}
}

// IsLatch reports whether b is a latch byte.
func IsLatch(b byte) bool { return b&0x80 != 0 }

// IsData reports whether b is a data byte.
func IsData(b byte) bool { return b&0xC0 == 0x40 }

// IsReference reports whether b introduces a back-reference.
func IsReference(b byte) bool { return b >= refCodeBase && b <= refCodeLast }

// IsEndOfFrame reports whether b is an end-of-frame byte.
func IsEndOfFrame(b byte) bool { return b&0xF8 == frameCodeBase }

// IsReserved reports whether b is one of the reserved escape bytes 0x02-0x07.
func IsReserved(b byte) bool { return b >= 0x02 && b <= 0x07 }

// LatchByte encodes a latch of register r with the low nibble of value.
func LatchByte(r Register, value uint16) byte {
	return 0x80 | byte(r)<<4 | byte(value&0x0F)
}

// DataByte encodes a data byte carrying the high 6 bits of a tone value.
func DataByte(value uint16) byte {
	return 0x40 | byte((value>>4)&0x3F)
}

// EndOfFrameByte encodes an end of frame waiting the given number of frames (1-8).
func EndOfFrameByte(frames int) byte {
	return frameCodeBase + byte((frames-1)&0x07)
}

// WaitFrames returns the frame count carried by an end-of-frame byte.
func WaitFrames(b byte) int {
	return int(b&0x07) + 1
}

// RefLength returns the run length carried by a back-reference code.
func RefLength(b byte) int {
	return int(b-refCodeBase) + MinRefLength
}

// RefCode encodes the back-reference code byte for a run of length n.
func RefCode(n int) byte {
	return refCodeBase + byte(n-MinRefLength)
}
