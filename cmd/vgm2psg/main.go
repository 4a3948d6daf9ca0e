// Command vgm2psg converts the SN76489 part of a VGM log into a command
// stream.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeandeaual/go-locale"
	"github.com/spf13/afero"
	"golang.org/x/text/message"

	"github.com/user-none/emsn/cli"
	"github.com/user-none/emsn/emu"
	"github.com/user-none/emsn/loader"
	"github.com/user-none/emsn/psg"
	"github.com/user-none/emsn/vgm"
)

func main() {
	clock := flag.Int("clock", emu.DefaultClock, "target chip clock in Hz")
	frameRate := flag.Int("framerate", psg.DefaultFrameRate, "output frame rate in Hz")
	noCompress := flag.Bool("noncompressed", false, "do not compress the output")
	insertLength := flag.Bool("insertlength", false, "prefix the output with its 16-bit length")
	strategyName := flag.String("strategy", psg.Greedy.String(), "compression strategy: greedy or descending")
	outPath := flag.String("o", "", "output file (default: input name with .psg)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: vgm2psg [options] <file.vgm|file.vgz> [output.psg]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(1)
	}
	strategy, err := psg.ParseStrategy(*strategyName)
	if err == nil {
		err = cli.CheckRange("clock", *clock, cli.MinClock, cli.MaxClock)
	}
	if err == nil {
		err = cli.CheckRange("framerate", *frameRate, cli.MinFrameRate, cli.MaxFrameRate)
	}
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	in := flag.Arg(0)
	out := *outPath
	if flag.NArg() == 2 {
		out = flag.Arg(1)
	}
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".psg"
	}

	fs := afero.NewOsFs()
	entry, err := loader.Load(fs, in)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", in, err)
	}
	f, err := vgm.Parse(entry.Data)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", in, err)
	}
	log.Printf("%s: %s", entry.Name, cli.DescribeVGM(f))
	if f.Header.DualChip {
		log.Printf("Warning: only the first of two chips is converted")
	}

	res, err := vgm.Convert(f, vgm.ConvertOptions{FrameRate: *frameRate, Clock: *clock})
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
	if res.Unknown > 0 {
		log.Printf("Warning: skipped %d unknown commands", res.Unknown)
	}

	data := res.Stream
	if !*noCompress {
		if data, err = psg.Compress(data, psg.CompressOptions{Strategy: strategy}); err != nil {
			log.Fatalf("Compression failed: %v", err)
		}
	}
	if *insertLength {
		if data, err = psg.AddLength(data); err != nil {
			log.Fatal(err)
		}
	}

	if err := loader.Save(fs, out, data); err != nil {
		log.Fatalf("Failed to write %s: %v", out, err)
	}

	p := newPrinter()
	p.Printf("%s: %d frames", out, res.Frames)
	if res.Looped {
		p.Printf(", looped")
	}
	p.Printf(", %d bytes", len(data))
	if !*noCompress {
		p.Printf(" (%d uncompressed, %.1f%%)", len(res.Stream), 100*float64(len(data))/float64(len(res.Stream)))
	}
	p.Printf("\n")
}

// newPrinter formats numbers for the user's locale.
func newPrinter() *message.Printer {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("Warning: locale: %v", err)
	}
	if len(locales) == 0 {
		locales = []string{"en-US"}
	}
	return message.NewPrinter(message.MatchLanguage(locales...))
}
