package cli

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user-none/emsn/psg"
	"github.com/user-none/emsn/vgm"
)

// minimalVGM returns a version 1.50 log with cmds at 0x80.
func minimalVGM(cmds []byte) []byte {
	h := make([]byte, 0x80)
	copy(h, "Vgm ")
	binary.LittleEndian.PutUint32(h[0x08:], 0x150)
	binary.LittleEndian.PutUint32(h[0x0C:], 3579545)
	binary.LittleEndian.PutUint32(h[0x34:], 0x4C)
	data := append(h, cmds...)
	binary.LittleEndian.PutUint32(data[0x04:], uint32(len(data)-4))
	return data
}

var twoNotes = []byte{0x50, 0x90, 0x63, 0x50, 0x91, 0x63, 0x66}

func writeFile(t *testing.T, fs afero.Fs, name string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, data, 0644))
}

func TestLoadStreamPSG(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/song.psg", []byte{0x90, 0x38, 0x00})

	s, err := LoadStream(fs, "/song.psg", StreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x38, 0x00}, s.Data)
	assert.Equal(t, "song.psg", s.Title)
	assert.False(t, s.Converted)
	assert.Zero(t, s.NoiseTap)
	assert.Zero(t, s.NoiseWidth)
}

func TestLoadStreamLengthPrefix(t *testing.T) {
	fs := afero.NewMemMapFs()
	prefixed, err := psg.AddLength([]byte{0x90, 0x38, 0x00})
	require.NoError(t, err)
	writeFile(t, fs, "/song.psg", prefixed)

	s, err := LoadStream(fs, "/song.psg", StreamOptions{LengthPrefix: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x38, 0x00}, s.Data)

	writeFile(t, fs, "/short.psg", []byte{0x09})
	_, err = LoadStream(fs, "/short.psg", StreamOptions{LengthPrefix: true})
	assert.ErrorIs(t, err, psg.ErrMalformedStream)
}

func TestLoadStreamVGM(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/song.vgm", minimalVGM(twoNotes))

	s, err := LoadStream(fs, "/song.vgm", StreamOptions{FrameRate: 50})
	require.NoError(t, err)
	assert.True(t, s.Converted)
	assert.Equal(t, []byte{0x90, 0x38, 0x91, 0x39, 0x00}, s.Data)
	assert.Equal(t, uint16(0x0009), s.NoiseTap)
	assert.Equal(t, 16, s.NoiseWidth)
	assert.Equal(t, "song.vgm", s.Title)
}

func TestLoadStreamVGZ(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(minimalVGM(twoNotes))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/song.vgz", buf.Bytes())

	s, err := LoadStream(fs, "/song.vgz", StreamOptions{})
	require.NoError(t, err)
	assert.True(t, s.Converted)
	assert.Equal(t, []byte{0x90, 0x38, 0x91, 0x39, 0x00}, s.Data)
}

func TestLoadStreamNoiseSettings(t *testing.T) {
	data := minimalVGM(twoNotes)
	binary.LittleEndian.PutUint16(data[0x28:], 0x0003)
	data[0x2A] = 15

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/sn.vgm", data)

	s, err := LoadStream(fs, "/sn.vgm", StreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0003), s.NoiseTap)
	assert.Equal(t, 15, s.NoiseWidth)
}

func TestLoadStreamUnsupportedVGM(t *testing.T) {
	data := minimalVGM(twoNotes)
	binary.LittleEndian.PutUint32(data[0x0C:], 0)

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/ym.vgm", data)

	_, err := LoadStream(fs, "/ym.vgm", StreamOptions{})
	assert.ErrorIs(t, err, vgm.ErrUnsupportedSource)
}

func TestLoadStreamMissing(t *testing.T) {
	_, err := LoadStream(afero.NewMemMapFs(), "/nope.psg", StreamOptions{})
	assert.Error(t, err)
}

func TestDescribeVGM(t *testing.T) {
	data := minimalVGM(twoNotes)
	binary.LittleEndian.PutUint32(data[0x18:], 125*vgm.SampleRate)

	f, err := vgm.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "VGM 1.50, 135 bytes, 2:05", DescribeVGM(f))

	// loop at the first command, one minute long
	binary.LittleEndian.PutUint32(data[0x1C:], 0x80-0x1C)
	binary.LittleEndian.PutUint32(data[0x20:], 60*vgm.SampleRate)
	f, err = vgm.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "VGM 1.50, 135 bytes, 2:05 (loop 1:00)", DescribeVGM(f))
}

func TestIsVGM(t *testing.T) {
	assert.True(t, IsVGM(minimalVGM(nil)))
	assert.False(t, IsVGM([]byte{0x90, 0x38, 0x00}))
	assert.False(t, IsVGM(nil))
}
