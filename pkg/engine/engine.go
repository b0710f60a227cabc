// Package engine wires the two decks, the mixer, the beat-sync manager and
// the output driver into one render loop, and is the thing pkg/abi drives.
package engine

import (
	"errors"
	"fmt"

	"djengine/pkg/beatsync"
	"djengine/pkg/callbackqueue"
	"djengine/pkg/deck"
	"djengine/pkg/driver"
	"djengine/pkg/mixer"
)

// ErrInvalidDeck is returned for a deck ID outside [0, 1].
var ErrInvalidDeck = errors.New("engine: deck id must be 0 or 1")

// ErrAlreadyStarted is returned by Start when the output is already open.
var ErrAlreadyStarted = errors.New("engine: already started")

// positionCallbackEvery throttles position notifications to roughly once
// every 10 render callbacks, matching the ~100ms cadence at a 512-frame
// buffer the original engine used.
const positionCallbackEvery = 10

// PositionCallback is invoked with the position, in seconds, of a deck.
type PositionCallback func(deckID int, seconds float64)

// TrackEndedCallback is invoked when a deck's playback reaches the end of
// its track.
type TrackEndedCallback func(deckID int)

// Engine owns the two decks, the mixer, the sync manager, and the output
// driver, and runs the render loop that ties them together.
type Engine struct {
	sampleRate int
	decks      [2]*deck.Deck
	mixer      *mixer.Mixer
	sync       *beatsync.Manager
	output     *driver.Output
	queue      *callbackqueue.Queue

	started bool

	callbackCounter int

	positionCB   PositionCallback
	trackEndedCB TrackEndedCallback
}

// New constructs an Engine at the given sample rate with empty decks.
func New(sampleRate int) *Engine {
	e := &Engine{
		sampleRate: sampleRate,
		mixer:      mixer.New(),
		sync:       beatsync.New(),
		queue:      callbackqueue.New(256),
	}
	e.decks[0] = deck.New(sampleRate)
	e.decks[1] = deck.New(sampleRate)
	e.output = driver.New(sampleRate)
	return e
}

// Deck returns deck 0 or 1, or nil for any other id.
func (e *Engine) Deck(id int) *deck.Deck {
	if id < 0 || id > 1 {
		return nil
	}
	return e.decks[id]
}

// SampleRate returns the engine's fixed render sample rate.
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// Mixer returns the shared crossfader/clipper.
func (e *Engine) Mixer() *mixer.Mixer {
	return e.mixer
}

// Sync returns the beat-sync manager.
func (e *Engine) Sync() *beatsync.Manager {
	return e.sync
}

// SetPositionCallback installs the callback invoked periodically (from
// Drain, not the audio thread) with each deck's playback position.
func (e *Engine) SetPositionCallback(cb PositionCallback) {
	e.positionCB = cb
}

// SetTrackEndedCallback installs the callback invoked when a deck's
// playback runs off the end of its track.
func (e *Engine) SetTrackEndedCallback(cb TrackEndedCallback) {
	e.trackEndedCB = cb
}

// Start opens the output device and begins pulling mixed audio through
// render. bufferFrames is the frame count the device will request per
// callback; mixer and output scratch buffers are sized for it up front so
// the render path never allocates.
func (e *Engine) Start(bufferFrames int) error {
	if e.started {
		return ErrAlreadyStarted
	}
	e.mixer.Reserve(bufferFrames)
	e.output.Reserve(bufferFrames)
	if err := e.output.Open(bufferFrames); err != nil {
		return fmt.Errorf("engine: start: %w", err)
	}
	e.output.Start(e.render)
	e.started = true
	return nil
}

// Stop halts the output device. The engine can be Start-ed again.
func (e *Engine) Stop() {
	if !e.started {
		return
	}
	e.output.Stop()
	e.started = false
}

// Shutdown stops playback and releases the output device permanently.
func (e *Engine) Shutdown() {
	e.Stop()
	e.output.Close()
}

// Drain delivers any queued position/track-ended notifications raised by
// the audio thread since the last call. Call this periodically from a
// non-realtime goroutine (the CLI's poll loop, for instance).
func (e *Engine) Drain() {
	e.queue.Drain(func(ev callbackqueue.Event) {
		switch ev.Kind {
		case callbackqueue.Position:
			if e.positionCB != nil {
				e.positionCB(ev.DeckID, ev.Value)
			}
		case callbackqueue.TrackEnded:
			if e.trackEndedCB != nil {
				e.trackEndedCB(ev.DeckID)
			}
		}
	})
}

// render is the audio callback: update sync, mix both decks, and throttle
// host notifications into the queue. It must not block or allocate beyond
// the mixer's pre-sized scratch buffers.
func (e *Engine) render(output []float32, frames int) {
	deckIfaces := [2]beatsync.Deck{e.decks[0], e.decks[1]}
	e.sync.Update(deckIfaces, e.sampleRate)

	e.mixer.Mix(e.decks[0], e.decks[1], output, frames)

	for i := 0; i < 2; i++ {
		if e.decks[i].ConsumeTrackEnded() {
			e.queue.Push(callbackqueue.Event{Kind: callbackqueue.TrackEnded, DeckID: i})
		}
	}

	e.callbackCounter++
	if e.callbackCounter >= positionCallbackEvery {
		e.callbackCounter = 0
		for i := 0; i < 2; i++ {
			e.queue.Push(callbackqueue.Event{
				Kind:   callbackqueue.Position,
				DeckID: i,
				Value:  e.decks[i].GetPosition(),
			})
		}
	}
}
