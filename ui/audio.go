package ui

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ErrResourceUnavailable is returned when no audio output can be opened.
var ErrResourceUnavailable = errors.New("audio output unavailable")

// otoBufferSize is the device side buffering requested from oto.
const otoBufferSize = 50 * time.Millisecond

// AudioPlayer plays a BufferQueue through oto. oto's player pulls samples
// from the queue, completing buffers as it goes.
type AudioPlayer struct {
	player *oto.Player
	queue  *BufferQueue
}

// oto context singleton
var (
	otoCtx      *oto.Context
	otoInitOnce sync.Once
	otoInitErr  error
	otoRate     int
	otoChannels int
)

// ensureOtoContext initializes the oto audio context on first use. oto
// allows one context per process, so later calls must ask for the same
// format.
func ensureOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		otoRate, otoChannels = sampleRate, channels
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   otoBufferSize,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-readyChan
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if sampleRate != otoRate || channels != otoChannels {
		return nil, fmt.Errorf("audio context already open at %d Hz, %d channels", otoRate, otoChannels)
	}
	return otoCtx, nil
}

// NewAudioPlayer opens the default output device and starts playing from
// a new BufferQueue of count buffers of size int16 values.
func NewAudioPlayer(sampleRate, channels, count, size int, volume float64) (*AudioPlayer, error) {
	ctx, err := ensureOtoContext(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}

	q := NewBufferQueue(count, size)
	player := ctx.NewPlayer(q)
	player.SetVolume(volume)
	player.Play()

	return &AudioPlayer{
		player: player,
		queue:  q,
	}, nil
}

// Queue returns the buffer queue feeding the device.
func (a *AudioPlayer) Queue() *BufferQueue {
	return a.queue
}

// GetBufferLevel returns the bytes of audio not yet played, in the queue
// and inside oto.
func (a *AudioPlayer) GetBufferLevel() int {
	return a.queue.Buffered() + a.player.BufferedSize()
}

// Drain waits up to timeout for queued and device-buffered audio to play.
func (a *AudioPlayer) Drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for a.GetBufferLevel() > 0 && time.Now().Before(deadline) {
		time.Sleep(pausePoll)
	}
}

// SetVolume sets the playback volume (0.0 = silent, 1.0 = full).
func (a *AudioPlayer) SetVolume(vol float64) {
	a.player.SetVolume(vol)
}

// Close stops the device and releases the queue.
func (a *AudioPlayer) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	if a.player != nil {
		a.player.Close()
	}
}
