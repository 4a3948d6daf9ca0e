package psg

// RegisterFile holds the 8 logical chip registers and the latch state used by
// two-byte tone writes.
type RegisterFile struct {
	regs    [RegisterCount]uint16
	latched Register
	latchOK bool
}

// Reset clears all registers and the latch.
func (rf *RegisterFile) Reset() {
	*rf = RegisterFile{}
}

// Get returns the current value of register r.
func (rf *RegisterFile) Get(r Register) uint16 {
	return rf.regs[r&7]
}

// Values returns a copy of all 8 registers.
func (rf *RegisterFile) Values() [RegisterCount]uint16 {
	return rf.regs
}

// Latched returns the latched register and whether any latch happened yet.
func (rf *RegisterFile) Latched() (Register, bool) {
	return rf.latched, rf.latchOK
}

// Set stores a full register value, masking it to the register width.
func (rf *RegisterFile) Set(r Register, value uint16) {
	r &= 7
	switch {
	case r.IsTone():
		rf.regs[r] = value & 0x3FF
	case r == NoiseControl:
		rf.regs[r] = value & 0x07
	default:
		rf.regs[r] = value & 0x0F
	}
}

// Write applies one raw chip port byte with hardware semantics and returns
// the register it changed and its new value. Data bytes before any latch
// are ignored and report ok == false.
func (rf *RegisterFile) Write(b byte) (r Register, value uint16, ok bool) {
	if IsLatch(b) {
		r = Register((b >> 4) & 0x07)
		rf.latched = r
		rf.latchOK = true
		low := uint16(b & 0x0F)
		if r.IsTone() {
			rf.regs[r] = (rf.regs[r] & 0x3F0) | low
		} else {
			rf.Set(r, low)
		}
		return r, rf.regs[r], true
	}

	if !rf.latchOK {
		return 0, 0, false
	}
	r = rf.latched
	data := uint16(b & 0x3F)
	if r.IsTone() {
		rf.regs[r] = (rf.regs[r] & 0x00F) | data<<4
	} else {
		rf.Set(r, data)
	}
	return r, rf.regs[r], true
}
