package psg

// Recorder builds an uncompressed command stream from live chip writes.
// Writes are collected per frame; EndFrame emits only the registers that
// changed since the previous frame.
type Recorder struct {
	regs         RegisterFile
	prev         [RegisterCount]uint16
	noiseWritten bool

	srcClock int
	dstClock int

	buf         []byte
	frames      int
	loopWritten bool
}

// Silent is the attenuation value that mutes a channel.
const Silent = 0x0F

// NewRecorder creates an empty recorder. All channels start silent, the
// state a player's chip is reset to.
func NewRecorder() *Recorder {
	rec := &Recorder{}
	for r := Register(0); r < RegisterCount; r++ {
		if r.IsAttenuation() {
			rec.regs.Set(r, Silent)
			rec.prev[r] = Silent
		}
	}
	return rec
}

// Retune rescales tone dividers written for a chip clocked at src so they
// play at the same pitch on a chip clocked at dst.
func (rec *Recorder) Retune(src, dst int) {
	if src <= 0 || dst <= 0 || src == dst {
		rec.srcClock, rec.dstClock = 0, 0
		return
	}
	rec.srcClock, rec.dstClock = src, dst
}

// Write applies a raw chip port byte.
func (rec *Recorder) Write(b byte) {
	r, _, ok := rec.regs.Write(b)
	if ok && r == NoiseControl {
		rec.noiseWritten = true
	}
}

// WriteRegister stores a full register value.
func (rec *Recorder) WriteRegister(r Register, value uint16) {
	rec.regs.Set(r, value)
	if r&7 == NoiseControl {
		rec.noiseWritten = true
	}
}

// Registers returns the current register values before retuning.
func (rec *Recorder) Registers() [RegisterCount]uint16 {
	return rec.regs.Values()
}

func (rec *Recorder) tone(v uint16) uint16 {
	if rec.srcClock == 0 || v == 0 {
		return v
	}
	scaled := (int(v)*rec.dstClock + rec.srcClock/2) / rec.srcClock
	if scaled < 1 {
		scaled = 1
	}
	if scaled > 0x3FF {
		scaled = 0x3FF
	}
	return uint16(scaled)
}

// EndFrame closes the current frame. loopReached reports whether the frame
// lies at or past the loop point of the source; the loop marker is written
// after the first such frame.
func (rec *Recorder) EndFrame(loopReached bool) {
	changed := false
	for i := 0; i < RegisterCount; i++ {
		r := Register(i)
		v := rec.regs.Get(r)
		switch {
		case r.IsAttenuation():
			if v != rec.prev[r] {
				rec.buf = append(rec.buf, LatchByte(r, v))
				rec.prev[r] = v
				changed = true
			}
		case r == NoiseControl:
			// any write resets the noise generator, so repeats are kept
			if rec.noiseWritten {
				rec.buf = append(rec.buf, LatchByte(r, v))
				rec.prev[r] = v
				changed = true
			}
		default:
			v = rec.tone(v)
			if v != rec.prev[r] {
				rec.buf = append(rec.buf, LatchByte(r, v))
				if v&0x3F0 != rec.prev[r]&0x3F0 {
					rec.buf = append(rec.buf, DataByte(v))
				}
				rec.prev[r] = v
				changed = true
			}
		}
	}
	rec.noiseWritten = false

	if changed || !rec.extendWait() {
		rec.buf = append(rec.buf, EndOfFrameByte(1))
	}

	if loopReached && !rec.loopWritten {
		rec.buf = append(rec.buf, LoopStartCode)
		rec.loopWritten = true
	}
	rec.frames++
}

// extendWait adds one frame to the previous end-of-frame byte if it can.
func (rec *Recorder) extendWait() bool {
	n := len(rec.buf)
	if n == 0 || !IsEndOfFrame(rec.buf[n-1]) {
		return false
	}
	wait := WaitFrames(rec.buf[n-1])
	if wait >= MaxWaitFrames {
		return false
	}
	rec.buf[n-1] = EndOfFrameByte(wait + 1)
	return true
}

// Frames returns the number of frames recorded.
func (rec *Recorder) Frames() int {
	return rec.frames
}

// HasLoop reports whether the finished stream has a loop section.
func (rec *Recorder) HasLoop() bool {
	return rec.loopWritten && !rec.trailingLoop()
}

// trailingLoop reports whether the loop marker is the last byte so far. Such
// a loop section would have no frames and is left out by Finish.
func (rec *Recorder) trailingLoop() bool {
	n := len(rec.buf)
	return n > 0 && rec.buf[n-1] == LoopStartCode
}

// Finish returns the terminated stream. The recorder can keep recording
// afterwards; each call returns a fresh copy.
func (rec *Recorder) Finish() []byte {
	body := rec.buf
	if rec.trailingLoop() {
		body = body[:len(body)-1]
	}
	out := make([]byte, len(body)+1)
	copy(out, body)
	out[len(body)] = EndOfStreamCode
	return out
}
