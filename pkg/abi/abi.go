// Package abi exposes the engine behind the flat, language-neutral surface
// described by the project's host ABI: integer status codes (0 success,
// negative failure), no error detail, a single hidden engine instance, and
// deck ids restricted to 0 or 1. cmd/djengine-shared re-exports this package
// through cgo for non-Go hosts; Go hosts can call it directly.
package abi

import (
	"sync"

	"djengine/pkg/analyzer"
	"djengine/pkg/beatsync"
	"djengine/pkg/deck"
	"djengine/pkg/engine"
)

const (
	StatusOK   = 0
	StatusFail = -1
)

// defaultBufferFrames is used when EngineInit is given a buffer size of 0
// or less.
const defaultBufferFrames = 2048

var (
	mu                   sync.Mutex
	eng                  *engine.Engine
	configuredBufferSize int
)

// EngineInit constructs the single engine instance. Calling it twice
// without an intervening EngineShutdown fails. bufferSize is the frame
// count the output device will request per render callback; it is applied
// when EngineStart opens the device.
func EngineInit(sampleRate, bufferSize int) int {
	mu.Lock()
	defer mu.Unlock()
	if eng != nil {
		return StatusFail
	}
	eng = engine.New(sampleRate)
	configuredBufferSize = bufferSize
	return StatusOK
}

// EngineShutdown tears down the engine instance, if any.
func EngineShutdown() {
	mu.Lock()
	defer mu.Unlock()
	if eng == nil {
		return
	}
	eng.Shutdown()
	eng = nil
	configuredBufferSize = 0
}

// EngineStart opens the output device and begins rendering, using the
// buffer size passed to EngineInit (or a default if it was 0 or less).
func EngineStart() int {
	mu.Lock()
	e := eng
	frames := configuredBufferSize
	mu.Unlock()
	if e == nil {
		return StatusFail
	}
	if frames <= 0 {
		frames = defaultBufferFrames
	}
	if err := e.Start(frames); err != nil {
		return StatusFail
	}
	return StatusOK
}

// EngineStop halts rendering without tearing down the engine instance.
func EngineStop() {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e == nil {
		return
	}
	e.Stop()
}

func validDeck(id int) bool { return id == 0 || id == 1 }

// DeckLoadTrack loads path into deck id.
func DeckLoadTrack(deckID int, path string) int {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e == nil || !validDeck(deckID) {
		return StatusFail
	}
	if err := e.Deck(deckID).Load(path); err != nil {
		return StatusFail
	}
	return StatusOK
}

// DeckUnloadTrack unloads deck id's track.
func DeckUnloadTrack(deckID int) {
	if d := deckOf(deckID); d != nil {
		d.Unload()
	}
}

// DeckPlay resumes playback from the current position.
func DeckPlay(deckID int) {
	if d := deckOf(deckID); d != nil {
		d.Play(-1)
	}
}

// DeckPlaySynced starts deckID phase-matched to masterID's beat grid,
// per the cued-start algorithm, then begins playback.
func DeckPlaySynced(deckID, masterID int) {
	slave, master := deckOf(deckID), deckOf(masterID)
	if slave == nil || master == nil {
		return
	}
	sampleRate := sampleRateOf()
	beatsync.PlaySynced(slave, master, sampleRate)
}

// DeckPause halts playback in place.
func DeckPause(deckID int) {
	if d := deckOf(deckID); d != nil {
		d.Pause()
	}
}

// DeckStop halts playback and rewinds to the start.
func DeckStop(deckID int) {
	if d := deckOf(deckID); d != nil {
		d.Stop()
	}
}

// DeckSetPosition seeks to position seconds into the track.
func DeckSetPosition(deckID int, seconds float64) {
	if d := deckOf(deckID); d != nil {
		d.SetPosition(seconds)
	}
}

// DeckGetPosition returns the current playback position in seconds.
func DeckGetPosition(deckID int) float64 {
	if d := deckOf(deckID); d != nil {
		return d.GetPosition()
	}
	return 0
}

// DeckGetDuration returns the loaded track's duration in seconds, or 0 if
// nothing is loaded.
func DeckGetDuration(deckID int) float64 {
	if d := deckOf(deckID); d != nil {
		return d.GetDuration()
	}
	return 0
}

// DeckIsPlaying reports whether deckID is transporting (1) or not (0).
func DeckIsPlaying(deckID int) int {
	if d := deckOf(deckID); d != nil && d.IsPlaying() {
		return 1
	}
	return 0
}

// DeckSetVolume sets linear gain in [0, 1].
func DeckSetVolume(deckID int, volume float32) {
	if d := deckOf(deckID); d != nil {
		d.SetGain(volume)
	}
}

// DeckSetTempo sets the playback speed ratio, clamped to [0.5, 2.0].
func DeckSetTempo(deckID int, tempo float64) {
	if d := deckOf(deckID); d != nil {
		d.SetTempo(tempo)
	}
}

// DeckSetPitch sets the pitch shift in semitones, clamped to [-12, 12].
func DeckSetPitch(deckID int, semitones float64) {
	if d := deckOf(deckID); d != nil {
		d.SetPitch(semitones)
	}
}

// DeckSetBPM records the track's tempo for beat-grid calculations.
func DeckSetBPM(deckID int, bpm float64) {
	if d := deckOf(deckID); d != nil {
		d.SetBPM(bpm)
	}
}

// DeckGetBPM returns the recorded BPM.
func DeckGetBPM(deckID int) float64 {
	if d := deckOf(deckID); d != nil {
		return d.GetBPM()
	}
	return 0
}

// DeckSetBeatOffset records the first beat's position in seconds.
func DeckSetBeatOffset(deckID int, seconds float64) {
	if d := deckOf(deckID); d != nil {
		d.SetBeatOffset(seconds)
	}
}

// DeckSetEQLow, DeckSetEQMid and DeckSetEQHigh set the three EQ band gains.
func DeckSetEQLow(deckID int, gain float32) {
	if d := deckOf(deckID); d != nil {
		d.SetEQLow(gain)
	}
}

func DeckSetEQMid(deckID int, gain float32) {
	if d := deckOf(deckID); d != nil {
		d.SetEQMid(gain)
	}
}

func DeckSetEQHigh(deckID int, gain float32) {
	if d := deckOf(deckID); d != nil {
		d.SetEQHigh(gain)
	}
}

// MixerSetCrossfader sets the crossfader position, 0 = deck A, 1 = deck B.
func MixerSetCrossfader(position float32) {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e != nil {
		e.Mixer().SetCrossfader(position)
	}
}

// SyncEnable locks slaveID's tempo and phase to masterID's.
func SyncEnable(slaveID, masterID int) {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e != nil {
		e.Sync().Enable(slaveID, masterID)
	}
}

// SyncDisable turns off sync if deckID is the currently synced slave.
func SyncDisable(deckID int) {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e != nil {
		e.Sync().Disable(deckID)
	}
}

// SyncAlignNow performs a one-shot tempo and phase alignment.
func SyncAlignNow(slaveID, masterID int) {
	slave, master := deckOf(slaveID), deckOf(masterID)
	if slave == nil || master == nil {
		return
	}
	beatsync.AlignNow(slave, master, sampleRateOf())
}

// AnalyzeBPM returns an estimated BPM for deckID's loaded track, or 0 if
// nothing is loaded or the estimate is inconclusive.
func AnalyzeBPM(deckID int) float64 {
	d := deckOf(deckID)
	if d == nil {
		return 0
	}
	return analyzer.EstimateBPM(d.Buffer())
}

// AnalyzeBeatOffset returns the detected first-beat position in seconds
// for deckID's loaded track at the given bpm.
func AnalyzeBeatOffset(deckID int, bpm float64) float64 {
	d := deckOf(deckID)
	if d == nil {
		return 0
	}
	return analyzer.DetectBeatOffset(d.Buffer(), bpm)
}

// SetPositionCallback installs the periodic position notification.
func SetPositionCallback(cb engine.PositionCallback) {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e != nil {
		e.SetPositionCallback(cb)
	}
}

// SetTrackEndedCallback installs the end-of-track notification.
func SetTrackEndedCallback(cb engine.TrackEndedCallback) {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e != nil {
		e.SetTrackEndedCallback(cb)
	}
}

// Drain delivers queued notifications; call periodically off the audio
// thread (the CLI's poll loop, for instance).
func Drain() {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e != nil {
		e.Drain()
	}
}

func deckOf(id int) *deck.Deck {
	mu.Lock()
	e := eng
	mu.Unlock()
	if e == nil || !validDeck(id) {
		return nil
	}
	return e.Deck(id)
}

func sampleRateOf() int {
	// The original hard-codes 44100 in its sync math; this project fixes
	// that bug by deriving it from the live engine instead.
	mu.Lock()
	defer mu.Unlock()
	if eng == nil {
		return 44100
	}
	return eng.SampleRate()
}
