package psg

import (
	"bufio"
	"fmt"
	"io"
)

// DefaultFrameRate is the playback rate assumed when none is given.
const DefaultFrameRate = 50

var noiseRates = [4]string{"low (N/512)", "medium (N/1024)", "high (N/2048)", "tone #3"}

// Dumper writes a human readable listing of a command stream.
type Dumper struct {
	// FrameRate converts frame counts into timestamps. Zero means DefaultFrameRate.
	FrameRate int
}

// Dump decodes data and writes one line per command to w. The loop section
// is listed once. Decoding stops at the first malformed byte, whose error is
// returned after the lines decoded so far.
func (dm *Dumper) Dump(w io.Writer, data []byte) error {
	rate := dm.FrameRate
	if rate <= 0 {
		rate = DefaultFrameRate
	}

	bw := bufio.NewWriter(w)
	d := NewDecoder(data)
	d.MaxLoops = -1
	d.OnBackReference = func(ref BackReference) {
		fmt.Fprintf(bw, "0x%04X: 0x%02X    << compression pos: 0x%04X, length: %2d       >>\n",
			ref.Offset, RefCode(ref.Length), ref.Target, ref.Length)
	}

	for {
		ev, err := d.Next()
		if err != nil {
			if ferr := bw.Flush(); ferr != nil {
				return ferr
			}
			return err
		}

		fmt.Fprintf(bw, "0x%04X: 0x%02X    ", ev.Offset, ev.Code)
		switch ev.Kind {
		case EventRegisterWrite:
			writeRegisterLine(bw, ev)
		case EventEndOfFrame:
			fmt.Fprintf(bw, "---------- end of frame ------------ (%s)\n", FrameTime(d.Frames()-ev.Wait, rate))
		case EventLoopStart:
			fmt.Fprintln(bw, "begin loop")
		case EventEndOfStream:
			fmt.Fprintln(bw, "end of data")
			return bw.Flush()
		}
	}
}

func writeRegisterLine(w io.Writer, ev Event) {
	ch := ev.Register.Channel()
	switch {
	case ev.Register.IsTone() && ev.Latch:
		fmt.Fprintf(w, "Latch/Data: Tone Ch #%d -> 0x%03X\n", ch, ev.Value)
	case ev.Register.IsTone():
		fmt.Fprintf(w, "      Data: Tone Ch #%d -> 0x%03X\n", ch, ev.Value)
	case ev.Register == NoiseControl:
		kind := "periodic"
		if ev.Value&0x04 != 0 {
			kind = "white"
		}
		fmt.Fprintf(w, "Noise Type: %s, %s\n", kind, noiseRates[ev.Value&0x03])
	default:
		fmt.Fprintf(w, "Latch/Data: Volume Ch #%d -> 0x%02X (%d%%)\n", ch, ev.Value, (15-int(ev.Value))*100/15)
	}
}

// FrameTime formats a frame count as mm:ss.cc at the given frame rate.
func FrameTime(frames, rate int) string {
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	cs := frames * 100 / rate
	return fmt.Sprintf("%02d:%02d.%02d", cs/6000, (cs/100)%60, cs%100)
}
