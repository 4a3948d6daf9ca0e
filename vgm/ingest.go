package vgm

import (
	"encoding/binary"
	"fmt"
)

// VGM command codes used by the SN76489 path.
const (
	cmdPSG2nd     = 0x30
	cmdGGStereo   = 0x4F
	cmdPSG        = 0x50
	cmdWait       = 0x61
	cmdWait735    = 0x62
	cmdWait882    = 0x63
	cmdEnd        = 0x66
	cmdDataBlock  = 0x67
	cmdPCMRAM     = 0x68
	dataBlockHead = 7
)

// Frame is the SN76489 activity inside one output frame.
type Frame struct {
	// Writes are the chip port bytes in order. The slice is reused by the
	// next call to NextFrame.
	Writes []byte

	// Stereo is the last Game Gear stereo byte written, or -1.
	Stereo int

	// LoopReached reports whether the log position has passed the loop
	// offset. Always false for logs without a loop.
	LoopReached bool

	// End is set on the frame that reached the end of the log.
	End bool
}

// Ingest steps through a log one frame at a time.
type Ingest struct {
	file *File
	pos  int

	current int64
	target  int64
	waiting bool
	done    bool

	writes  []byte
	stereo  int
	unknown int
}

// NextFrame advances the target position by samples and processes commands
// until the log's own position catches up with it.
func (in *Ingest) NextFrame(samples int) (Frame, error) {
	in.writes = in.writes[:0]
	in.target += int64(samples)

	for !in.done && (!in.waiting || in.current < in.target) {
		if err := in.step(); err != nil {
			return Frame{}, err
		}
	}

	fr := Frame{
		Writes: in.writes,
		Stereo: in.stereo,
		End:    in.done,
	}
	if lo := in.file.Header.LoopOffset; lo != 0 {
		fr.LoopReached = in.pos >= lo
	}
	return fr, nil
}

// Done reports whether the end of the log was reached.
func (in *Ingest) Done() bool {
	return in.done
}

// SamplePos returns the log position in 44100 Hz samples.
func (in *Ingest) SamplePos() int64 {
	return in.current
}

// Unknown returns the number of unrecognised command bytes skipped.
func (in *Ingest) Unknown() int {
	return in.unknown
}

func (in *Ingest) need(n int) error {
	if in.pos+n > len(in.file.data) {
		return fmt.Errorf("%w: command 0x%02X at 0x%X needs %d bytes",
			ErrTruncated, in.file.data[in.pos], in.pos, n)
	}
	return nil
}

func (in *Ingest) wait(n int64) {
	in.current += n
	in.waiting = true
}

// step processes one command.
func (in *Ingest) step() error {
	data := in.file.data
	in.waiting = false

	if in.pos >= len(data) || (in.file.Header.EOFOffset != 0 && in.pos >= in.file.Header.EOFOffset) {
		in.done = true
		return nil
	}

	cmd := data[in.pos]
	switch {
	case cmd == cmdPSG:
		if err := in.need(2); err != nil {
			return err
		}
		in.writes = append(in.writes, data[in.pos+1])
		in.pos += 2

	case cmd == cmdGGStereo:
		if err := in.need(2); err != nil {
			return err
		}
		in.stereo = int(data[in.pos+1])
		in.pos += 2

	case cmd == cmdWait:
		if err := in.need(3); err != nil {
			return err
		}
		in.wait(int64(binary.LittleEndian.Uint16(data[in.pos+1:])))
		in.pos += 3

	case cmd == cmdWait735:
		in.wait(735)
		in.pos++

	case cmd == cmdWait882:
		in.wait(882)
		in.pos++

	case cmd >= 0x70 && cmd <= 0x7F:
		in.wait(int64(cmd&0x0F) + 1)
		in.pos++

	case cmd >= 0x80 && cmd <= 0x8F:
		// YM2612 DAC write with a wait
		in.wait(int64(cmd & 0x0F))
		in.pos++

	case cmd == cmdEnd:
		in.pos++
		in.done = true

	case cmd == cmdDataBlock:
		if err := in.need(dataBlockHead); err != nil {
			return err
		}
		size := int(binary.LittleEndian.Uint32(data[in.pos+3:]) & 0x7FFFFFFF)
		if err := in.need(dataBlockHead + size); err != nil {
			return err
		}
		in.pos += dataBlockHead + size

	default:
		n := commandLength(cmd)
		if n == 0 {
			in.unknown++
			n = 1
		}
		if err := in.need(n); err != nil {
			return err
		}
		in.pos += n
	}
	return nil
}

// commandLength returns the size of a command the SN76489 path skips, or 0
// for codes with no defined length.
func commandLength(cmd byte) int {
	switch {
	case cmd >= cmdPSG2nd && cmd <= 0x3F:
		return 2
	case cmd >= 0x40 && cmd <= 0x4E:
		return 3
	case cmd >= 0x51 && cmd <= 0x5F:
		return 3
	case cmd == cmdPCMRAM:
		return 12
	case cmd == 0x90 || cmd == 0x91 || cmd == 0x95:
		return 5
	case cmd == 0x92:
		return 6
	case cmd == 0x93:
		return 11
	case cmd == 0x94:
		return 2
	case cmd >= 0xA0 && cmd <= 0xBF:
		return 3
	case cmd >= 0xC0 && cmd <= 0xDF:
		return 4
	case cmd >= 0xE0:
		return 5
	}
	return 0
}
