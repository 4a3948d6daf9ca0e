package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/afero"

	"github.com/user-none/emsn/cli"
	"github.com/user-none/emsn/emu"
	"github.com/user-none/emsn/psg"
	"github.com/user-none/emsn/ui"
)

func main() {
	clock := flag.Int("clock", emu.DefaultClock, "chip clock in Hz")
	frameRate := flag.Int("framerate", psg.DefaultFrameRate, "stream frame rate in Hz")
	sampleRate := flag.Int("rate", emu.DefaultSampleRate, "output sample rate in Hz")
	stereo := flag.Bool("stereo", false, "render stereo output")
	engine := flag.String("engine", string(emu.EngineNative), "synthesis engine: native or reference")
	loops := flag.Int("loops", 0, "loop replays before stopping (0 = forever)")
	wavPath := flag.String("wav", "", "render to a wave file instead of the audio device")
	lengthPrefix := flag.Bool("lengthprefix", false, "input starts with a 16-bit length")
	volume := flag.Float64("volume", 1.0, "playback volume, 0.0 to 1.0")
	lowPass := flag.Float64("lowpass", 0, "output low-pass cutoff in Hz (0 = off)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: emsn [options] <file.psg|file.vgm|file.vgz>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	for _, err := range []error{
		cli.CheckRange("clock", *clock, cli.MinClock, cli.MaxClock),
		cli.CheckRange("framerate", *frameRate, cli.MinFrameRate, cli.MaxFrameRate),
		cli.CheckRange("rate", *sampleRate, cli.MinSampleRate, cli.MaxSampleRate),
		cli.CheckRange("volume", *volume, 0.0, 1.0),
	} {
		if err != nil {
			flag.Usage()
			log.Fatal(err)
		}
	}

	opts := options{
		clock:        *clock,
		frameRate:    *frameRate,
		sampleRate:   *sampleRate,
		stereo:       *stereo,
		engine:       emu.EngineKind(*engine),
		loops:        *loops,
		wavPath:      *wavPath,
		lengthPrefix: *lengthPrefix,
		volume:       *volume,
		lowPass:      *lowPass,
	}
	if err := play(flag.Arg(0), opts); err != nil {
		log.Fatal(err)
	}
}

// drainTimeout bounds the wait for the device to play out its buffer.
const drainTimeout = time.Second

type options struct {
	clock        int
	frameRate    int
	sampleRate   int
	stereo       bool
	engine       emu.EngineKind
	loops        int
	wavPath      string
	lengthPrefix bool
	volume       float64
	lowPass      float64
}

// play runs one file to completion.
func play(path string, opts options) error {
	fs := afero.NewOsFs()
	stream, err := cli.LoadStream(fs, path, cli.StreamOptions{
		FrameRate:    opts.frameRate,
		Clock:        opts.clock,
		LengthPrefix: opts.lengthPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to load stream: %w", err)
	}

	eng, err := emu.NewEngine(opts.engine, opts.clock, opts.sampleRate, opts.stereo)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if chip, ok := eng.(*emu.Chip); ok && stream.Converted {
		chip.SetNoiseTap(stream.NoiseTap)
		chip.SetNoiseWidth(stream.NoiseWidth)
	}

	cfg := emu.PlayerConfig{
		SampleRate: opts.sampleRate,
		FrameRate:  opts.frameRate,
		MaxLoops:   opts.loops,
		LowPassHz:  opts.lowPass,
	}

	var sink emu.Sink
	var audio *ui.AudioPlayer
	if opts.wavPath != "" {
		if cfg.MaxLoops == 0 {
			log.Printf("Warning: looping disabled for wave output")
			cfg.MaxLoops = -1
		}
		w, err := ui.NewWAVSink(fs, opts.wavPath, opts.sampleRate, eng.Channels(), ui.DefaultBufferLen)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Printf("Warning: %v", err)
			}
		}()
		sink = w
	} else {
		audio, err = ui.NewAudioPlayer(opts.sampleRate, eng.Channels(), ui.DefaultBufferCount, ui.DefaultBufferLen, opts.volume)
		if err != nil {
			return err
		}
		defer audio.Close()
		sink = audio.Queue()
	}

	player := emu.NewPlayer(eng, sink, cfg)
	player.Logger = log.Default()

	runner := cli.NewRunner(player, sink, opts.sampleRate)
	if opts.wavPath == "" {
		runner.Status = os.Stdout
		restore, err := runner.WatchKeys(os.Stdin)
		if err != nil {
			log.Printf("Warning: keyboard control unavailable: %v", err)
		} else {
			defer restore()
		}
		fmt.Printf("%s (space: pause, esc: stop)\r\n", stream.Title)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = runner.Run(ctx, stream.Data)
	if err == nil && audio != nil && runner.Control().ShouldRun() {
		audio.Drain(drainTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
