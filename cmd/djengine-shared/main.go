// Command djengine-shared builds as a cgo c-shared library exporting the
// flat, language-neutral host ABI described by the engine's design: plain
// C functions, integer status codes, no error detail, deck ids of 0 or 1.
// It delegates every export to pkg/abi.
package main

/*
typedef void (*position_callback_t)(int deck_id, double position);
typedef void (*track_ended_callback_t)(int deck_id);

static inline void call_position_callback(position_callback_t cb, int deck_id, double position) {
	cb(deck_id, position);
}

static inline void call_track_ended_callback(track_ended_callback_t cb, int deck_id) {
	cb(deck_id);
}
*/
import "C"

import (
	"unsafe"

	"djengine/pkg/abi"
)

//export engine_init
func engine_init(sampleRate, bufferSize C.int) C.int {
	return C.int(abi.EngineInit(int(sampleRate), int(bufferSize)))
}

//export engine_shutdown
func engine_shutdown() {
	abi.EngineShutdown()
}

//export engine_start
func engine_start() C.int {
	return C.int(abi.EngineStart())
}

//export engine_stop
func engine_stop() {
	abi.EngineStop()
}

//export deck_load_track
func deck_load_track(deckID C.int, filePath *C.char) C.int {
	return C.int(abi.DeckLoadTrack(int(deckID), C.GoString(filePath)))
}

//export deck_unload_track
func deck_unload_track(deckID C.int) {
	abi.DeckUnloadTrack(int(deckID))
}

//export deck_play
func deck_play(deckID C.int) {
	abi.DeckPlay(int(deckID))
}

//export deck_play_synced
func deck_play_synced(deckID, masterDeckID C.int) {
	abi.DeckPlaySynced(int(deckID), int(masterDeckID))
}

//export deck_pause
func deck_pause(deckID C.int) {
	abi.DeckPause(int(deckID))
}

//export deck_stop
func deck_stop(deckID C.int) {
	abi.DeckStop(int(deckID))
}

//export deck_set_position
func deck_set_position(deckID C.int, positionSeconds C.double) {
	abi.DeckSetPosition(int(deckID), float64(positionSeconds))
}

//export deck_get_position
func deck_get_position(deckID C.int) C.double {
	return C.double(abi.DeckGetPosition(int(deckID)))
}

//export deck_get_duration
func deck_get_duration(deckID C.int) C.double {
	return C.double(abi.DeckGetDuration(int(deckID)))
}

//export deck_is_playing
func deck_is_playing(deckID C.int) C.int {
	return C.int(abi.DeckIsPlaying(int(deckID)))
}

//export deck_set_volume
func deck_set_volume(deckID C.int, volume C.float) {
	abi.DeckSetVolume(int(deckID), float32(volume))
}

//export deck_set_tempo
func deck_set_tempo(deckID C.int, tempo C.double) {
	abi.DeckSetTempo(int(deckID), float64(tempo))
}

//export deck_set_pitch
func deck_set_pitch(deckID C.int, semitones C.double) {
	abi.DeckSetPitch(int(deckID), float64(semitones))
}

//export deck_set_bpm
func deck_set_bpm(deckID C.int, bpm C.double) {
	abi.DeckSetBPM(int(deckID), float64(bpm))
}

//export deck_get_bpm
func deck_get_bpm(deckID C.int) C.double {
	return C.double(abi.DeckGetBPM(int(deckID)))
}

//export deck_set_beat_offset
func deck_set_beat_offset(deckID C.int, offsetSeconds C.double) {
	abi.DeckSetBeatOffset(int(deckID), float64(offsetSeconds))
}

//export deck_set_eq_low
func deck_set_eq_low(deckID C.int, gain C.float) {
	abi.DeckSetEQLow(int(deckID), float32(gain))
}

//export deck_set_eq_mid
func deck_set_eq_mid(deckID C.int, gain C.float) {
	abi.DeckSetEQMid(int(deckID), float32(gain))
}

//export deck_set_eq_high
func deck_set_eq_high(deckID C.int, gain C.float) {
	abi.DeckSetEQHigh(int(deckID), float32(gain))
}

//export mixer_set_crossfader
func mixer_set_crossfader(position C.float) {
	abi.MixerSetCrossfader(float32(position))
}

//export sync_enable
func sync_enable(slaveDeckID, masterDeckID C.int) {
	abi.SyncEnable(int(slaveDeckID), int(masterDeckID))
}

//export sync_disable
func sync_disable(deckID C.int) {
	abi.SyncDisable(int(deckID))
}

//export sync_align_now
func sync_align_now(slaveDeckID, masterDeckID C.int) {
	abi.SyncAlignNow(int(slaveDeckID), int(masterDeckID))
}

//export audio_analyze_bpm
func audio_analyze_bpm(deckID C.int) C.double {
	return C.double(abi.AnalyzeBPM(int(deckID)))
}

//export audio_analyze_beat_offset
func audio_analyze_beat_offset(deckID C.int, bpm C.double) C.double {
	return C.double(abi.AnalyzeBeatOffset(int(deckID), float64(bpm)))
}

// set_position_callback and set_track_ended_callback store the host's raw
// C function pointer and wrap it in a Go closure that pkg/abi invokes from
// its notification-drain path, never from the audio thread.

//export set_position_callback
func set_position_callback(callback unsafe.Pointer) {
	if callback == nil {
		abi.SetPositionCallback(nil)
		return
	}
	fn := C.position_callback_t(callback)
	abi.SetPositionCallback(func(deckID int, seconds float64) {
		C.call_position_callback(fn, C.int(deckID), C.double(seconds))
	})
}

//export set_track_ended_callback
func set_track_ended_callback(callback unsafe.Pointer) {
	if callback == nil {
		abi.SetTrackEndedCallback(nil)
		return
	}
	fn := C.track_ended_callback_t(callback)
	abi.SetTrackEndedCallback(func(deckID int) {
		C.call_track_ended_callback(fn, C.int(deckID))
	})
}

func main() {}
