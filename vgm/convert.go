package vgm

import (
	"fmt"

	"github.com/user-none/emsn/psg"
)

const defaultFrameRate = 50

// ConvertOptions configures Convert. Zero values select defaults.
type ConvertOptions struct {
	// FrameRate is the playback rate of the produced stream in Hz.
	FrameRate int

	// Clock is the chip clock the stream targets. When it differs from the
	// log's clock, tone dividers are rescaled to keep the pitch.
	Clock int
}

// Result is a converted log.
type Result struct {
	// Stream is the uncompressed, terminated command stream.
	Stream []byte
	Frames int
	Looped bool
	// Unknown counts skipped command bytes with no defined length.
	Unknown int
}

// Convert records the log's SN76489 writes frame by frame into an
// uncompressed command stream.
func Convert(f *File, opts ConvertOptions) (Result, error) {
	rate := opts.FrameRate
	if rate <= 0 {
		rate = defaultFrameRate
	}
	step := SampleRate / rate

	rec := psg.NewRecorder()
	if opts.Clock > 0 {
		rec.Retune(f.Header.SNClock, opts.Clock)
	}

	in := f.Ingest()
	for {
		fr, err := in.NextFrame(step)
		if err != nil {
			return Result{}, fmt.Errorf("frame %d: %w", rec.Frames(), err)
		}
		for _, b := range fr.Writes {
			rec.Write(b)
		}
		rec.EndFrame(fr.LoopReached)
		if fr.End {
			break
		}
	}

	return Result{
		Stream:  rec.Finish(),
		Frames:  rec.Frames(),
		Looped:  rec.HasLoop(),
		Unknown: in.Unknown(),
	}, nil
}
