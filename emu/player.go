package emu

import (
	"context"
	"fmt"
	"log"

	"github.com/user-none/emsn/psg"
)

// State is the playback scheduler state.
type State int

const (
	StateIdle State = iota
	StateCommandProcessing
	StateWaiting
	StateBufferWaiting
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCommandProcessing:
		return "processing"
	case StateWaiting:
		return "waiting"
	case StateBufferWaiting:
		return "buffer-waiting"
	case StateEnding:
		return "ending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sink is a queue of reusable output buffers with asynchronous completion.
type Sink interface {
	// Acquire returns a free buffer, or nil if all buffers are in use.
	// It never blocks.
	Acquire() []int16
	// Submit queues a filled buffer for output. Submitting a zero-length
	// slice of an acquired buffer returns it unused.
	Submit(buf []int16)
	// Busy reports whether any submitted buffer is still pending.
	Busy() bool
}

// Waiter is implemented by sinks that can block on buffer completion.
type Waiter interface {
	// Wait blocks until a buffer can be acquired.
	Wait(ctx context.Context) error
	// WaitIdle blocks until every submitted buffer has completed.
	WaitIdle(ctx context.Context) error
}

// PlayerConfig configures a Player. Zero values select defaults.
type PlayerConfig struct {
	SampleRate int
	FrameRate  int

	// Attenuation divides every rendered sample. Values below 1 mean 1.
	Attenuation int

	// MaxLoops bounds loop replays; zero loops forever.
	MaxLoops int

	// LowPassHz enables an output low-pass filter when positive.
	LowPassHz float64
}

// Player drives a command stream through an Engine into a Sink one step at a
// time. It never blocks; callers poll Process until Busy reports false.
type Player struct {
	// Logger receives playback failures. Nil discards them.
	Logger *log.Logger

	engine Engine
	sink   Sink
	cfg    PlayerConfig

	dec   *psg.Decoder
	state State
	err   error

	samplesPerFrame int
	waitLeft        int
	buf             []int16
	fill            int
	samplePos       int64

	filter *lowPass
}

// NewPlayer creates an idle player.
func NewPlayer(engine Engine, sink Sink, cfg PlayerConfig) *Player {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.Attenuation < 1 {
		cfg.Attenuation = 1
	}
	return &Player{
		engine:          engine,
		sink:            sink,
		cfg:             cfg,
		samplesPerFrame: cfg.SampleRate / cfg.FrameRate,
		filter:          newLowPass(cfg.LowPassHz, cfg.SampleRate, engine.Channels()),
	}
}

// Start resets the engine and begins playing stream. A session already in
// progress is stopped first.
func (p *Player) Start(stream []byte) {
	p.Stop()
	p.engine.Reset()
	p.filter.reset()
	p.dec = psg.NewDecoder(stream)
	p.dec.MaxLoops = p.cfg.MaxLoops
	p.err = nil
	p.waitLeft = 0
	p.samplePos = 0
	p.state = StateCommandProcessing
}

// Stop abandons playback immediately without waiting for queued buffers.
func (p *Player) Stop() {
	p.release()
	p.state = StateIdle
}

// State returns the scheduler state.
func (p *Player) State() State {
	return p.state
}

// Busy reports whether a session is in progress.
func (p *Player) Busy() bool {
	return p.state != StateIdle
}

// Blocked reports whether the player can make no progress until the sink
// completes a buffer.
func (p *Player) Blocked() bool {
	return p.state == StateBufferWaiting || p.state == StateEnding
}

// Err returns the error that ended the last session, if any.
func (p *Player) Err() error {
	return p.err
}

// SamplePos returns the number of sample frames rendered this session.
func (p *Player) SamplePos() int64 {
	return p.samplePos
}

// Frames returns the number of stream frames played this session.
func (p *Player) Frames() int {
	if p.dec == nil {
		return 0
	}
	return p.dec.Frames()
}

// Loops returns how many times the loop section was replayed.
func (p *Player) Loops() int {
	if p.dec == nil {
		return 0
	}
	return p.dec.Loops()
}

// Process advances playback until a buffer is submitted, the sink has no
// free buffer, or the session ends. It returns the resulting state.
func (p *Player) Process() State {
	for {
		switch p.state {
		case StateIdle:
			return p.state

		case StateCommandProcessing:
			if !p.processCommands() {
				return p.state
			}

		case StateWaiting:
			if p.buf == nil {
				p.state = StateBufferWaiting
				continue
			}
			if p.render() {
				return p.state
			}

		case StateBufferWaiting:
			buf := p.sink.Acquire()
			if buf == nil {
				return p.state
			}
			clear(buf)
			p.buf = buf
			p.fill = 0
			p.state = StateWaiting

		case StateEnding:
			if !p.sink.Busy() {
				p.state = StateIdle
			}
			return p.state
		}
	}
}

// processCommands applies events up to the next frame boundary. It returns
// false when the session left the processing path.
func (p *Player) processCommands() bool {
	for {
		ev, err := p.dec.Next()
		if err != nil {
			p.fail(err)
			return false
		}

		switch ev.Kind {
		case psg.EventRegisterWrite:
			p.engine.WriteRegister(ev.Register, ev.Value)
		case psg.EventEndOfFrame:
			p.waitLeft = ev.Wait * p.samplesPerFrame
			p.state = StateWaiting
			return true
		case psg.EventEndOfStream:
			p.flush()
			p.state = StateEnding
			return true
		}
	}
}

// render fills the current buffer with up to the remaining wait. It returns
// true when a full buffer was submitted.
func (p *Player) render() bool {
	ch := p.engine.Channels()
	room := len(p.buf)/ch - p.fill
	n := p.waitLeft
	if n > room {
		n = room
	}

	p.engine.Render(p.buf[p.fill*ch:], n, p.cfg.Attenuation)
	p.fill += n
	p.waitLeft -= n
	p.samplePos += int64(n)

	if p.fill*ch >= len(p.buf) {
		p.flush()
		p.state = StateBufferWaiting
		return true
	}
	if p.waitLeft == 0 {
		p.state = StateCommandProcessing
	}
	return false
}

// flush submits the filled part of the current buffer.
func (p *Player) flush() {
	if p.buf == nil {
		return
	}
	out := p.buf[:p.fill*p.engine.Channels()]
	p.filter.apply(out)
	p.sink.Submit(out)
	p.buf = nil
	p.fill = 0
}

func (p *Player) release() {
	if p.buf != nil {
		p.sink.Submit(p.buf[:0])
		p.buf = nil
		p.fill = 0
	}
}

func (p *Player) fail(err error) {
	p.err = fmt.Errorf("playback stopped at frame %d: %w", p.dec.Frames(), err)
	if p.Logger != nil {
		p.Logger.Printf("Warning: %v", p.err)
	}
	p.release()
	p.state = StateIdle
}
