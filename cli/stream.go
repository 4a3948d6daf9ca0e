package cli

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/spf13/afero"

	"github.com/user-none/emsn/loader"
	"github.com/user-none/emsn/psg"
	"github.com/user-none/emsn/vgm"
)

// StreamOptions configures LoadStream.
type StreamOptions struct {
	// FrameRate and Clock are used when converting a VGM log.
	FrameRate int
	Clock     int
	// LengthPrefix strips a 16-bit length from a command stream file.
	LengthPrefix bool
}

// Stream is a command stream ready for playback.
type Stream struct {
	Data  []byte
	Title string
	// NoiseTap is the white noise feedback mask of a converted log, or 0.
	NoiseTap uint16
	// NoiseWidth is the noise shift register width of a converted log, or 0.
	NoiseWidth int
	// Converted is set when Data was recorded from a VGM log.
	Converted bool
}

// IsVGM reports whether data starts with the VGM identifier.
func IsVGM(data []byte) bool {
	return bytes.HasPrefix(data, []byte("Vgm "))
}

// LoadStream loads name from fs. Archives and compression are unwrapped and
// VGM logs are converted on the fly.
func LoadStream(fs afero.Fs, name string, opts StreamOptions) (Stream, error) {
	entry, err := loader.Load(fs, name)
	if err != nil {
		return Stream{}, err
	}

	if !IsVGM(entry.Data) {
		data := entry.Data
		if opts.LengthPrefix {
			if data, err = psg.StripLength(data); err != nil {
				return Stream{}, fmt.Errorf("%s: %w", entry.Name, err)
			}
		}
		return Stream{Data: data, Title: entry.Name}, nil
	}

	f, err := vgm.Parse(entry.Data)
	if err != nil {
		return Stream{}, fmt.Errorf("%s: %w", entry.Name, err)
	}
	res, err := vgm.Convert(f, vgm.ConvertOptions{FrameRate: opts.FrameRate, Clock: opts.Clock})
	if err != nil {
		return Stream{}, fmt.Errorf("%s: %w", entry.Name, err)
	}
	if res.Unknown > 0 {
		log.Printf("Warning: %s: skipped %d unknown commands", entry.Name, res.Unknown)
	}

	s := Stream{
		Data:       res.Stream,
		Title:      entry.Name,
		NoiseTap:   f.Header.NoiseFeedback,
		NoiseWidth: f.Header.ShiftWidth,
		Converted:  true,
	}
	if tags, err := f.Tags(); err == nil && tags.Title() != "" {
		s.Title = tags.Title()
	}
	return s, nil
}

// DescribeVGM summarises a parsed log on one line, e.g.
// "VGM 1.50, 4096 bytes, 2:05 (loop 1:00)".
func DescribeVGM(f *vgm.File) string {
	h := f.Header
	s := fmt.Sprintf("VGM %s, %d bytes, %s", h.VersionString(), f.Len(), clockTime(h.Duration()))
	if h.LoopOffset != 0 && h.LoopSamples > 0 {
		s += fmt.Sprintf(" (loop %s)", clockTime(h.LoopDuration()))
	}
	return s
}

// clockTime renders d as m:ss, truncated to whole seconds.
func clockTime(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
