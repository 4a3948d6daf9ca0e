package vgm

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user-none/emsn/psg"
)

const ntscClock = 3579545

var le = binary.LittleEndian

// buildVGM returns a log with cmds placed at the data offset the version
// implies: 0x80 from 1.50 on, 0x40 before.
func buildVGM(version, clock uint32, cmds []byte) []byte {
	size := 0x80
	if version < 0x150 {
		size = 0x40
	}
	h := make([]byte, size)
	copy(h, "Vgm ")
	le.PutUint32(h[0x08:], version)
	le.PutUint32(h[0x0C:], clock)
	if version >= 0x150 {
		le.PutUint32(h[0x34:], 0x4C)
	}
	data := append(h, cmds...)
	le.PutUint32(data[0x04:], uint32(len(data)-4))
	return data
}

func setLoop(data []byte, abs int) {
	le.PutUint32(data[0x1C:], uint32(abs-0x1C))
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseHeader(t *testing.T) {
	data := buildVGM(0x150, ntscClock, []byte{0x66})
	le.PutUint32(data[0x18:], 2*SampleRate)
	le.PutUint32(data[0x20:], SampleRate/2)
	le.PutUint32(data[0x24:], 60)

	f, err := Parse(data)
	require.NoError(t, err)

	h := f.Header
	assert.Equal(t, ntscClock, h.SNClock)
	assert.False(t, h.DualChip)
	assert.Equal(t, 0x80, h.DataOffset)
	assert.Equal(t, len(data), h.EOFOffset)
	assert.Equal(t, 2*time.Second, h.Duration())
	assert.Equal(t, 500*time.Millisecond, h.LoopDuration())
	assert.Equal(t, uint32(60), h.Rate)
	assert.Equal(t, "1.50", h.VersionString())
	assert.Zero(t, h.LoopOffset)
	assert.Zero(t, h.GD3Offset)
}

func TestParseClockFlags(t *testing.T) {
	f, err := Parse(buildVGM(0x150, dualChipBit|ntscClock, []byte{0x66}))
	require.NoError(t, err)
	assert.Equal(t, ntscClock, f.Header.SNClock)
	assert.True(t, f.Header.DualChip)
}

func TestParseDataOffset(t *testing.T) {
	tests := []struct {
		name    string
		version uint32
		field   uint32
		want    int
	}{
		{"before 1.50 ignores the field", 0x110, 0x4C, 0x40},
		{"zero field", 0x150, 0, 0x40},
		{"relative to 0x34", 0x150, 0x4C, 0x80},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, 0x100)
			copy(data, "Vgm ")
			le.PutUint32(data[0x08:], tc.version)
			le.PutUint32(data[0x0C:], ntscClock)
			le.PutUint32(data[0x34:], tc.field)

			f, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, f.Header.DataOffset)
		})
	}
}

func TestParseNoiseSettings(t *testing.T) {
	data := buildVGM(0x110, ntscClock, []byte{0x66})
	le.PutUint16(data[0x28:], 0x0006)
	data[0x2A] = 15

	f, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0006), f.Header.NoiseFeedback)
	assert.Equal(t, 15, f.Header.ShiftWidth)

	// fields did not exist before 1.10
	data = buildVGM(0x101, ntscClock, []byte{0x66})
	le.PutUint16(data[0x28:], 0x0006)
	f, err = Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0009), f.Header.NoiseFeedback)
	assert.Equal(t, 16, f.Header.ShiftWidth)
}

func TestParseRejects(t *testing.T) {
	notVGM := buildVGM(0x150, ntscClock, []byte{0x66})
	copy(notVGM, "Vgz ")

	noPSG := buildVGM(0x150, 0, []byte{0x66})

	badGzip := gzipped(t, buildVGM(0x150, ntscClock, []byte{0x66}))
	badGzip[2] = 7

	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("Vgm ")},
		{"identifier", notVGM},
		{"no SN76489 clock", noPSG},
		{"gzip method", badGzip},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.data)
			assert.ErrorIs(t, err, ErrUnsupportedSource)
		})
	}
}

func TestParseGzip(t *testing.T) {
	raw := buildVGM(0x150, ntscClock, []byte{0x50, 0x90, 0x62, 0x66})

	f, err := Parse(gzipped(t, raw))
	require.NoError(t, err)
	assert.Equal(t, len(raw), f.Len())
	assert.Equal(t, ntscClock, f.Header.SNClock)

	plain, err := Inflate(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, plain)
}

func TestIngestFrameStepping(t *testing.T) {
	data := buildVGM(0x150, ntscClock, []byte{
		0x50, 0x90, // write A
		0x63,       // 882 samples
		0x50, 0x91, // write B
		0x61, 0xE4, 0x06, // 1764 samples
		0x50, 0x92, // write C
		0x66,
	})
	f, err := Parse(data)
	require.NoError(t, err)

	in := f.Ingest()
	var got [][]byte
	for i := 0; i < 10 && !in.Done(); i++ {
		fr, err := in.NextFrame(882)
		require.NoError(t, err)
		got = append(got, append([]byte(nil), fr.Writes...))
		assert.Equal(t, in.Done(), fr.End)
		assert.False(t, fr.LoopReached)
		assert.Equal(t, -1, fr.Stereo)
	}

	assert.Equal(t, [][]byte{{0x90}, {0x91}, nil, {0x92}}, got)
	assert.Equal(t, int64(2646), in.SamplePos())
	assert.True(t, in.Done())
}

func TestIngestShortWaits(t *testing.T) {
	data := buildVGM(0x150, ntscClock, []byte{
		0x50, 0x90,
		0x7F, // 16 samples
		0x50, 0x91,
		0x85, // DAC write, 5 samples
		0x50, 0x92,
		0x62, // 735 samples
		0x66,
	})
	f, err := Parse(data)
	require.NoError(t, err)

	in := f.Ingest()
	fr, err := in.NextFrame(20)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x91}, fr.Writes)
	assert.Equal(t, int64(21), in.SamplePos())

	fr, err = in.NextFrame(735)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x92}, fr.Writes)
	assert.False(t, fr.End)
}

func TestIngestSkipsOtherChips(t *testing.T) {
	data := buildVGM(0x150, ntscClock, []byte{
		0x52, 0x2A, 0x80, // YM2612
		0x67, 0x66, 0x00, 0x03, 0x00, 0x00, 0x00, 0xAA, 0xBB, 0xCC, // data block
		0x4F, 0x33, // Game Gear stereo
		0x30, 0x9F, // second chip, ignored
		0xE0, 0x00, 0x00, 0x00, 0x00, // PCM seek
		0x20, // undefined
		0x50, 0x9F,
		0x66,
	})
	f, err := Parse(data)
	require.NoError(t, err)

	in := f.Ingest()
	fr, err := in.NextFrame(882)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x9F}, fr.Writes)
	assert.Equal(t, 0x33, fr.Stereo)
	assert.True(t, fr.End)
	assert.Equal(t, 1, in.Unknown())
}

func TestIngestTruncated(t *testing.T) {
	for _, cmds := range [][]byte{
		{0x50},
		{0x61, 0x10},
		{0x67, 0x66, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x01},
	} {
		data := buildVGM(0x150, ntscClock, cmds)
		f, err := Parse(data)
		require.NoError(t, err)

		_, err = f.Ingest().NextFrame(882)
		assert.ErrorIs(t, err, ErrTruncated, "commands % X", cmds)
	}
}

func TestIngestEndsWithoutEndCommand(t *testing.T) {
	f, err := Parse(buildVGM(0x150, ntscClock, []byte{0x50, 0x90}))
	require.NoError(t, err)

	fr, err := f.Ingest().NextFrame(882)
	require.NoError(t, err)
	assert.True(t, fr.End)
	assert.Equal(t, []byte{0x90}, fr.Writes)
}

func TestIngestLoopReached(t *testing.T) {
	data := buildVGM(0x150, ntscClock, []byte{
		0x50, 0x90, 0x63,
		0x50, 0x91, 0x63,
		0x66,
	})
	setLoop(data, 0x83)
	f, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 0x83, f.Header.LoopOffset)

	in := f.Ingest()
	fr, err := in.NextFrame(882)
	require.NoError(t, err)
	assert.True(t, fr.LoopReached)
}

func TestConvert(t *testing.T) {
	cmds := []byte{
		0x50, 0x90, 0x63,
		0x50, 0x91, 0x63,
		0x66,
	}

	t.Run("no loop", func(t *testing.T) {
		f, err := Parse(buildVGM(0x150, ntscClock, cmds))
		require.NoError(t, err)

		res, err := Convert(f, ConvertOptions{})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x90, 0x38, 0x91, 0x39, 0x00}, res.Stream)
		assert.Equal(t, 3, res.Frames)
		assert.False(t, res.Looped)
	})

	t.Run("loop", func(t *testing.T) {
		data := buildVGM(0x150, ntscClock, cmds)
		setLoop(data, 0x83)
		f, err := Parse(data)
		require.NoError(t, err)

		res, err := Convert(f, ConvertOptions{FrameRate: 50})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x90, 0x38, 0x01, 0x91, 0x39, 0x00}, res.Stream)
		assert.True(t, res.Looped)

		events, err := psg.DecodeAll(res.Stream, 2)
		require.NoError(t, err)
		var values []uint16
		for _, ev := range events {
			if ev.Kind == psg.EventRegisterWrite {
				values = append(values, ev.Value)
			}
		}
		assert.Equal(t, []uint16{0, 1, 1, 1}, values)
	})

	t.Run("compresses", func(t *testing.T) {
		var long []byte
		for i := 0; i < 40; i++ {
			long = append(long, 0x50, 0x80|byte(i%4), 0x50, 0x10, 0x50, 0x90|byte(i%3), 0x63)
		}
		long = append(long, 0x66)
		f, err := Parse(buildVGM(0x150, ntscClock, long))
		require.NoError(t, err)

		res, err := Convert(f, ConvertOptions{})
		require.NoError(t, err)

		packed, err := psg.Compress(res.Stream, psg.CompressOptions{})
		require.NoError(t, err)
		assert.Less(t, len(packed), len(res.Stream))

		expanded, err := psg.Expand(packed)
		require.NoError(t, err)
		assert.Equal(t, res.Stream, expanded)
	})
}

func TestConvertRetune(t *testing.T) {
	f, err := Parse(buildVGM(0x150, ntscClock, []byte{0x50, 0x80, 0x50, 0x10, 0x66}))
	require.NoError(t, err)

	res, err := Convert(f, ConvertOptions{Clock: 2 * ntscClock})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x60, 0x38, 0x00}, res.Stream)

	res, err = Convert(f, ConvertOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x50, 0x38, 0x00}, res.Stream)
}

func encodeGD3(fields ...string) []byte {
	var body []byte
	for _, s := range fields {
		for _, u := range utf16.Encode([]rune(s)) {
			body = le.AppendUint16(body, u)
		}
		body = append(body, 0, 0)
	}
	block := []byte("Gd3 ")
	block = le.AppendUint32(block, 0x100)
	block = le.AppendUint32(block, uint32(len(body)))
	return append(block, body...)
}

func TestTags(t *testing.T) {
	data := buildVGM(0x150, ntscClock, []byte{0x66})
	gd3At := len(data)
	data = append(data, encodeGD3(
		"Green Hill Zone", "グリーンヒル",
		"Sonic the Hedgehog", "ソニック",
		"Sega Master System", "",
		"Masato Nakamura", "",
		"1991", "ripper", "notes",
	)...)
	le.PutUint32(data[0x14:], uint32(gd3At-0x14))
	le.PutUint32(data[0x04:], uint32(len(data)-4))

	f, err := Parse(data)
	require.NoError(t, err)

	tags, err := f.Tags()
	require.NoError(t, err)
	assert.Equal(t, Tags{
		Track:  "Green Hill Zone",
		Game:   "Sonic the Hedgehog",
		System: "Sega Master System",
		Author: "Masato Nakamura",
		Date:   "1991",
		Ripper: "ripper",
		Notes:  "notes",
	}, tags)
	assert.Equal(t, "Green Hill Zone - Sonic the Hedgehog", tags.Title())

	// the command data still ends at the end command
	fr, err := f.Ingest().NextFrame(882)
	require.NoError(t, err)
	assert.True(t, fr.End)
}

func TestTagsMissing(t *testing.T) {
	f, err := Parse(buildVGM(0x150, ntscClock, []byte{0x66}))
	require.NoError(t, err)
	tags, err := f.Tags()
	require.NoError(t, err)
	assert.Equal(t, Tags{}, tags)
	assert.Empty(t, tags.Title())

	data := buildVGM(0x150, ntscClock, []byte{0x66})
	le.PutUint32(data[0x14:], 0x100)
	f, err = Parse(data)
	require.NoError(t, err)
	_, err = f.Tags()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestTagsTitle(t *testing.T) {
	assert.Equal(t, "Track", Tags{Track: "Track"}.Title())
	assert.Equal(t, "Game", Tags{Game: "Game"}.Title())
}
