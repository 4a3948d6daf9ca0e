package ui

import (
	"sync"
	"time"
)

// pausePoll is how often a paused playback loop rechecks its state.
const pausePoll = 10 * time.Millisecond

// PlaybackControl carries pause and stop requests from the keyboard
// goroutine to the playback loop.
type PlaybackControl struct {
	mu      sync.Mutex
	paused  bool
	stopReq bool
}

// NewPlaybackControl creates a control in the playing state.
func NewPlaybackControl() *PlaybackControl {
	return &PlaybackControl{}
}

// TogglePause pauses or resumes playback and returns the new paused state.
func (pc *PlaybackControl) TogglePause() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.paused = !pc.paused
	return pc.paused
}

// Stop signals the playback loop to exit. It also releases a pause.
func (pc *PlaybackControl) Stop() {
	pc.mu.Lock()
	pc.stopReq = true
	pc.paused = false
	pc.mu.Unlock()
}

// ShouldRun returns true if playback should continue.
func (pc *PlaybackControl) ShouldRun() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return !pc.stopReq
}

// IsPaused returns true while playback is paused.
func (pc *PlaybackControl) IsPaused() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.paused
}

// CheckPause is called by the playback loop between ticks. It waits while
// paused and returns false if the loop should exit.
func (pc *PlaybackControl) CheckPause() bool {
	for {
		pc.mu.Lock()
		stop, paused := pc.stopReq, pc.paused
		pc.mu.Unlock()

		if stop {
			return false
		}
		if !paused {
			return true
		}
		time.Sleep(pausePoll)
	}
}
