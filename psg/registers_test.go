package psg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterFileWrite(t *testing.T) {
	table := []struct {
		writes []byte
		reg    Register
		value  uint16
	}{
		{writes: []byte{0x8A}, reg: Tone0, value: 0x00A},
		{writes: []byte{0x8A, 0x45}, reg: Tone0, value: 0x05A},
		{writes: []byte{0x8A, 0x45, 0x83}, reg: Tone0, value: 0x053},
		{writes: []byte{0xA1, 0x3F}, reg: Tone1, value: 0x3F1},
		{writes: []byte{0xCF, 0x7F}, reg: Tone2, value: 0x3FF},
		{writes: []byte{0x9D}, reg: Attenuation0, value: 0x0D},
		{writes: []byte{0x9D, 0x42}, reg: Attenuation0, value: 0x02},
		{writes: []byte{0xEF}, reg: NoiseControl, value: 0x07},
		{writes: []byte{0xE2, 0x05}, reg: NoiseControl, value: 0x05},
		{writes: []byte{0xF8}, reg: NoiseAttenuation, value: 0x08},
	}

	for _, tc := range table {
		var rf RegisterFile
		for _, b := range tc.writes {
			rf.Write(b)
		}
		assert.Equal(t, tc.value, rf.Get(tc.reg), "writes % X", tc.writes)
	}
}

func TestRegisterFileDataBeforeLatch(t *testing.T) {
	var rf RegisterFile
	_, _, ok := rf.Write(0x45)
	assert.False(t, ok)
	assert.Equal(t, [RegisterCount]uint16{}, rf.Values())

	_, ok = rf.Latched()
	assert.False(t, ok)
}

func TestRegisterFileSetMasks(t *testing.T) {
	var rf RegisterFile
	rf.Set(Tone1, 0xFFFF)
	rf.Set(Attenuation1, 0xFF)
	rf.Set(NoiseControl, 0xFF)
	assert.Equal(t, uint16(0x3FF), rf.Get(Tone1))
	assert.Equal(t, uint16(0x0F), rf.Get(Attenuation1))
	assert.Equal(t, uint16(0x07), rf.Get(NoiseControl))

	rf.Reset()
	assert.Equal(t, [RegisterCount]uint16{}, rf.Values())
}

func TestRegisterKinds(t *testing.T) {
	tones := []Register{Tone0, Tone1, Tone2}
	for _, r := range tones {
		assert.True(t, r.IsTone(), r.String())
		assert.False(t, r.IsAttenuation(), r.String())
	}
	for _, r := range []Register{Attenuation0, Attenuation1, Attenuation2, NoiseAttenuation} {
		assert.True(t, r.IsAttenuation(), r.String())
		assert.False(t, r.IsTone(), r.String())
	}
	assert.False(t, NoiseControl.IsTone())
	assert.False(t, NoiseControl.IsAttenuation())
	assert.Equal(t, 3, NoiseAttenuation.Channel())
	assert.Equal(t, 2, Tone2.Channel())
}

func TestByteClasses(t *testing.T) {
	for b := 0; b < 256; b++ {
		c := byte(b)
		classes := 0
		for _, is := range []bool{
			IsLatch(c), IsData(c), IsReference(c), IsEndOfFrame(c), IsReserved(c),
			c == EndOfStreamCode, c == LoopStartCode,
		} {
			if is {
				classes++
			}
		}
		assert.Equal(t, 1, classes, "byte 0x%02X", c)
	}
}

func TestEncodeHelpers(t *testing.T) {
	assert.Equal(t, byte(0x9D), LatchByte(Attenuation0, 0xD))
	assert.Equal(t, byte(0xEC), LatchByte(NoiseControl, 0x1C))
	assert.Equal(t, byte(0x45), DataByte(0x05A))
	assert.Equal(t, byte(0x38), EndOfFrameByte(1))
	assert.Equal(t, byte(0x3F), EndOfFrameByte(8))
	assert.Equal(t, 8, WaitFrames(0x3F))
	assert.Equal(t, byte(0x08), RefCode(MinRefLength))
	assert.Equal(t, byte(0x37), RefCode(MaxRefLength))
	assert.Equal(t, 6, RefLength(0x0A))
	assert.Equal(t, MaxRefLength, RefLength(0x37))
}
