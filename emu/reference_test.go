package emu

import (
	"testing"

	"github.com/user-none/emsn/psg"
)

func TestReferenceChip_Registers(t *testing.T) {
	r := NewReferenceChip(DefaultClock, DefaultSampleRate, false)
	r.WriteRegister(psg.Tone0, 0x15A)
	r.WriteRegister(psg.Attenuation0, 3)
	r.WriteRegister(psg.Tone2, 0x001)
	r.WriteRegister(psg.NoiseControl, 5)
	r.WriteRegister(psg.NoiseAttenuation, 9)

	regs := r.Registers()
	want := map[psg.Register]uint16{
		psg.Tone0:            0x15A,
		psg.Attenuation0:     3,
		psg.Tone2:            0x001,
		psg.NoiseControl:     5,
		psg.NoiseAttenuation: 9,
		psg.Attenuation1:     0x0F,
	}
	for reg, v := range want {
		if regs[reg] != v {
			t.Errorf("%v: got 0x%X, want 0x%X", reg, regs[reg], v)
		}
	}
}

func TestReferenceChip_MatchesRegisterFile(t *testing.T) {
	stream := []byte{0x8A, 0x45, 0x9D, 0xA3, 0x52, 0xB0, 0xC1, 0x7F, 0xD2, 0xE6, 0xF4, 0x8B, 0x38, 0x00}

	r := NewReferenceChip(DefaultClock, DefaultSampleRate, false)
	var rf psg.RegisterFile
	for _, b := range stream[:len(stream)-2] {
		r.Write(b)
		rf.Write(b)
	}
	if got, want := r.Registers(), rf.Values(); got != want {
		t.Errorf("registers: got %v, want %v", got, want)
	}
}

func TestReferenceChip_SilentAfterReset(t *testing.T) {
	r := NewReferenceChip(DefaultClock, DefaultSampleRate, false)
	r.WriteRegister(psg.Attenuation0, 0)
	r.Reset()

	for i, v := range renderMono(r, 500) {
		if v != 0 {
			t.Fatalf("sample %d: got %d, want 0", i, v)
		}
	}
}

func TestReferenceChip_ToneOutput(t *testing.T) {
	r := NewReferenceChip(DefaultClock, DefaultSampleRate, true)
	r.Reset()
	r.WriteRegister(psg.Tone0, 0x0FE)
	r.WriteRegister(psg.Attenuation0, 0)

	out := renderMono(r, 2000)
	high := 0
	for i := 0; i < len(out); i += 2 {
		if out[i] != out[i+1] {
			t.Fatalf("frame %d: left %d != right %d", i/2, out[i], out[i+1])
		}
		if out[i] < 0 || out[i] > 8000 {
			t.Fatalf("frame %d: %d outside unipolar range", i/2, out[i])
		}
		if out[i] > 0 {
			high++
		}
	}
	if high < 500 || high > 1500 {
		t.Errorf("square wave duty looks wrong: %d of 2000 frames high", high)
	}
}

func TestReferenceChip_Determinism(t *testing.T) {
	run := func() []int16 {
		r := NewReferenceChip(DefaultClock, DefaultSampleRate, false)
		r.Reset()
		r.WriteRegister(psg.Tone1, 0x123)
		r.WriteRegister(psg.Attenuation1, 1)
		r.WriteRegister(psg.NoiseControl, 4)
		r.WriteRegister(psg.NoiseAttenuation, 2)
		return renderMono(r, 3000)
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between runs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(EngineNative, 0, 0, true)
	if err != nil {
		t.Fatalf("native: %v", err)
	}
	if _, ok := e.(*Chip); !ok || e.Channels() != 2 {
		t.Errorf("native: got %T with %d channels", e, e.Channels())
	}

	e, err = NewEngine(EngineReference, DefaultClock, DefaultSampleRate, false)
	if err != nil {
		t.Fatalf("reference: %v", err)
	}
	if _, ok := e.(*ReferenceChip); !ok || e.Channels() != 1 {
		t.Errorf("reference: got %T with %d channels", e, e.Channels())
	}

	if _, err := NewEngine("fm", 0, 0, false); err == nil {
		t.Errorf("expected error for unknown engine")
	}
}
