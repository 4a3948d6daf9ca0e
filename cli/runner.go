// Package cli provides the terminal playback runner and the parameter
// checks shared by the command-line tools.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/user-none/emsn/emu"
	"github.com/user-none/emsn/ui"
)

const (
	// pollInterval paces the loop when the sink cannot block.
	pollInterval = 2 * time.Millisecond
	// statusInterval is how often the status line is refreshed.
	statusInterval = 250 * time.Millisecond
)

// Key bindings while playing.
const (
	keyEscape = 0x1B
	keyCtrlC  = 0x03
	keyPause  = ' '
	keyQuit   = 'q'
)

// Runner drives a Player until its stream ends or the user stops it. The
// player is polled on the calling goroutine. When the player is blocked on
// the sink, the runner sleeps in the sink's Wait or, while the last buffers
// play out, in WaitIdle.
type Runner struct {
	// Status receives a one line progress display. Nil disables it.
	Status io.Writer

	player     *emu.Player
	sink       emu.Sink
	control    *ui.PlaybackControl
	sampleRate int
}

// NewRunner creates a runner for player, which must write into sink.
func NewRunner(player *emu.Player, sink emu.Sink, sampleRate int) *Runner {
	if sampleRate <= 0 {
		sampleRate = emu.DefaultSampleRate
	}
	return &Runner{
		player:     player,
		sink:       sink,
		control:    ui.NewPlaybackControl(),
		sampleRate: sampleRate,
	}
}

// Control returns the pause and stop control of the runner.
func (r *Runner) Control() *ui.PlaybackControl {
	return r.control
}

// Run plays stream to completion. A stop request ends playback early and is
// not an error. Decoding failures are returned.
func (r *Runner) Run(ctx context.Context, stream []byte) error {
	r.player.Start(stream)
	defer r.player.Stop()

	waiter, canWait := r.sink.(emu.Waiter)
	var lastStatus time.Time

	for r.player.Busy() {
		if !r.control.CheckPause() {
			r.endStatus()
			return nil
		}
		if err := ctx.Err(); err != nil {
			r.endStatus()
			return err
		}

		r.player.Process()

		if time.Since(lastStatus) >= statusInterval {
			r.writeStatus()
			lastStatus = time.Now()
		}

		if !r.player.Blocked() {
			continue
		}
		if !canWait {
			time.Sleep(pollInterval)
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, statusInterval)
		var err error
		if r.player.State() == emu.StateEnding {
			err = waiter.WaitIdle(wctx)
		} else {
			err = waiter.Wait(wctx)
		}
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			r.endStatus()
			return err
		}
	}

	r.writeStatus()
	r.endStatus()
	return r.player.Err()
}

// HandleKey applies a single key press.
func (r *Runner) HandleKey(b byte) {
	switch b {
	case keyEscape, keyCtrlC, keyQuit:
		r.control.Stop()
	case keyPause:
		r.control.TogglePause()
	}
}

// WatchKeys switches f to raw mode and feeds its key presses to HandleKey
// from a new goroutine. The returned function restores the terminal. When f
// is not a terminal nothing is changed and keys are not read.
func (r *Runner) WatchKeys(f *os.File) (restore func(), err error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw terminal mode: %w", err)
	}
	go r.readKeys(f)
	return func() { _ = term.Restore(fd, old) }, nil
}

func (r *Runner) readKeys(in io.Reader) {
	buf := make([]byte, 16)
	for {
		n, err := in.Read(buf)
		for _, b := range buf[:n] {
			r.HandleKey(b)
		}
		if err != nil {
			return
		}
	}
}

func (r *Runner) writeStatus() {
	if r.Status == nil {
		return
	}
	state := "Playing"
	if r.control.IsPaused() {
		state = "Paused"
	}
	fmt.Fprintf(r.Status, "\r%s: %s", state, formatDuration(r.player.SamplePos(), r.sampleRate))
	if loops := r.player.Loops(); loops > 0 {
		fmt.Fprintf(r.Status, " (loop %d)", loops)
	}
	fmt.Fprint(r.Status, "\x1b[K")
}

func (r *Runner) endStatus() {
	if r.Status != nil {
		fmt.Fprint(r.Status, "\r\n")
	}
}

// formatDuration renders a sample position as m:ss.
func formatDuration(samples int64, rate int) string {
	secs := samples / int64(rate)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
