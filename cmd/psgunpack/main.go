// Command psgunpack expands the back-references of a compressed command
// stream.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/user-none/emsn/loader"
	"github.com/user-none/emsn/psg"
)

func main() {
	lengthPrefix := flag.Bool("lengthprefix", false, "input starts with a 16-bit length")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: psgunpack [options] <in.psg> [out.psg]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		os.Exit(1)
	}
	in := flag.Arg(0)
	out := flag.Arg(1)
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + "_unpacked.psg"
	}

	fs := afero.NewOsFs()
	entry, err := loader.Load(fs, in)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", in, err)
	}
	data := entry.Data
	if *lengthPrefix {
		if data, err = psg.StripLength(data); err != nil {
			log.Fatal(err)
		}
	}

	expanded, err := psg.Expand(data)
	if err != nil {
		log.Fatalf("Failed to expand %s: %v", in, err)
	}
	if err := loader.Save(fs, out, expanded); err != nil {
		log.Fatalf("Failed to write %s: %v", out, err)
	}
	fmt.Printf("%s: %d -> %d bytes\n", out, len(data), len(expanded))
}
