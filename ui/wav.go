package ui

import (
	"context"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

const (
	wavBitDepth  = 16
	wavFormatPCM = 1
)

// WAVSink renders into a 16-bit PCM wave file instead of a device. Every
// submitted buffer is written immediately, so the sink is never busy.
type WAVSink struct {
	file afero.File
	enc  *wav.Encoder
	buf  []int16
	out  *audio.IntBuffer

	samples int
	inUse   bool
	err     error
}

// NewWAVSink creates path on fs. Buffers hold size int16 values.
func NewWAVSink(fs afero.Fs, path string, sampleRate, channels, size int) (*WAVSink, error) {
	if size <= 0 {
		size = DefaultBufferLen
	}
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating wav output: %w", err)
	}
	return &WAVSink{
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, wavBitDepth, channels, wavFormatPCM),
		buf:  make([]int16, size),
		out: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           make([]int, 0, size),
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

// Acquire returns the sink's buffer unless it is already handed out.
func (w *WAVSink) Acquire() []int16 {
	if w.inUse || w.err != nil {
		return nil
	}
	w.inUse = true
	return w.buf
}

// Submit encodes buf. Write errors stop further acquisition and are
// reported by Close.
func (w *WAVSink) Submit(buf []int16) {
	w.inUse = false
	if len(buf) == 0 || w.err != nil {
		return
	}
	w.out.Data = w.out.Data[:0]
	for _, s := range buf {
		w.out.Data = append(w.out.Data, int(s))
	}
	if err := w.enc.Write(w.out); err != nil {
		w.err = fmt.Errorf("writing wav samples: %w", err)
		return
	}
	w.samples += len(buf)
}

// Busy is always false; writes complete synchronously.
func (w *WAVSink) Busy() bool {
	return false
}

// Wait returns immediately.
func (w *WAVSink) Wait(ctx context.Context) error {
	return ctx.Err()
}

// WaitIdle returns immediately.
func (w *WAVSink) WaitIdle(ctx context.Context) error {
	return ctx.Err()
}

// Samples returns the number of int16 values written.
func (w *WAVSink) Samples() int {
	return w.samples
}

// Close finalizes the header and closes the file.
func (w *WAVSink) Close() error {
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	switch {
	case w.err != nil:
		return w.err
	case encErr != nil:
		return fmt.Errorf("finalizing wav output: %w", encErr)
	}
	return fileErr
}
