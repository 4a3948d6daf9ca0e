// Command psg2txt prints a command stream one decoded byte per line.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"

	"github.com/user-none/emsn/cli"
	"github.com/user-none/emsn/loader"
	"github.com/user-none/emsn/psg"
)

func main() {
	frameRate := flag.Int("framerate", psg.DefaultFrameRate, "frame rate for timestamps in Hz")
	lengthPrefix := flag.Bool("lengthprefix", false, "input starts with a 16-bit length")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: psg2txt [options] <file.psg>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if err := cli.CheckRange("framerate", *frameRate, cli.MinFrameRate, cli.MaxFrameRate); err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	entry, err := loader.Load(afero.NewOsFs(), flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load %s: %v", flag.Arg(0), err)
	}
	data := entry.Data
	if *lengthPrefix {
		if data, err = psg.StripLength(data); err != nil {
			log.Fatal(err)
		}
	}

	dm := &psg.Dumper{FrameRate: *frameRate}
	if err := dm.Dump(os.Stdout, data); err != nil {
		log.Fatal(err)
	}
}
