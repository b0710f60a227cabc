// Command djengine-cli is a readline-driven REPL over the engine, useful
// for manual testing and as a reference host for the ABI.
package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"djengine/pkg/abi"
)

const sampleRate = 44100

func main() {
	fmt.Println("djengine-cli")
	fmt.Println("type 'help' for commands, 'quit' to exit")

	if status := abi.EngineInit(sampleRate, 512); status != abi.StatusOK {
		fmt.Println("engine_init failed")
		return
	}
	defer abi.EngineShutdown()

	abi.SetPositionCallback(func(deckID int, seconds float64) {})
	abi.SetTrackEndedCallback(func(deckID int) {
		fmt.Printf("\ndeck %d: track ended\n", deckID)
	})

	stop := make(chan struct{})
	go pollDrain(stop)
	defer close(stop)

	rl, err := readline.NewEx(&readline.Config{Prompt: "djengine> "})
	if err != nil {
		fmt.Println("readline init failed:", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if !dispatch(fields) {
			break
		}
	}
}

func pollDrain(stop <-chan struct{}) {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			abi.Drain()
		}
	}
}

func dispatch(fields []string) bool {
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "quit", "exit":
		return false

	case "help":
		printHelp()

	case "start":
		if abi.EngineStart() != abi.StatusOK {
			fmt.Println("engine_start failed")
		}

	case "stop":
		abi.EngineStop()

	case "load":
		deckID, path, ok := deckAndString(args)
		if !ok {
			fmt.Println("usage: load <deck> <path>")
			return true
		}
		if abi.DeckLoadTrack(deckID, path) != abi.StatusOK {
			fmt.Println("load failed")
		}

	case "unload":
		if deckID, ok := deckArg(args); ok {
			abi.DeckUnloadTrack(deckID)
		}

	case "play":
		if deckID, ok := deckArg(args); ok {
			abi.DeckPlay(deckID)
		}

	case "play_synced":
		deckID, masterID, ok := twoDecks(args)
		if !ok {
			fmt.Println("usage: play_synced <deck> <master>")
			return true
		}
		abi.DeckPlaySynced(deckID, masterID)

	case "pause":
		if deckID, ok := deckArg(args); ok {
			abi.DeckPause(deckID)
		}

	case "stop_deck":
		if deckID, ok := deckArg(args); ok {
			abi.DeckStop(deckID)
		}

	case "position":
		if deckID, ok := deckArg(args); ok {
			fmt.Printf("deck %d: %.2fs / %.2fs\n", deckID,
				abi.DeckGetPosition(deckID), abi.DeckGetDuration(deckID))
		}

	case "seek":
		deckID, seconds, ok := deckAndFloat(args)
		if !ok {
			fmt.Println("usage: seek <deck> <seconds>")
			return true
		}
		abi.DeckSetPosition(deckID, seconds)

	case "tempo":
		deckID, tempo, ok := deckAndFloat(args)
		if !ok {
			fmt.Println("usage: tempo <deck> <ratio>")
			return true
		}
		abi.DeckSetTempo(deckID, tempo)

	case "pitch":
		deckID, semitones, ok := deckAndFloat(args)
		if !ok {
			fmt.Println("usage: pitch <deck> <semitones>")
			return true
		}
		abi.DeckSetPitch(deckID, semitones)

	case "volume":
		deckID, vol, ok := deckAndFloat(args)
		if !ok {
			fmt.Println("usage: volume <deck> <0..1>")
			return true
		}
		abi.DeckSetVolume(deckID, float32(vol))

	case "eq":
		if len(args) != 3 {
			fmt.Println("usage: eq <deck> <low|mid|high> <gain>")
			return true
		}
		deckID, ok := parseDeck(args[0])
		gain, err := strconv.ParseFloat(args[2], 32)
		if !ok || err != nil {
			fmt.Println("usage: eq <deck> <low|mid|high> <gain>")
			return true
		}
		switch args[1] {
		case "low":
			abi.DeckSetEQLow(deckID, float32(gain))
		case "mid":
			abi.DeckSetEQMid(deckID, float32(gain))
		case "high":
			abi.DeckSetEQHigh(deckID, float32(gain))
		default:
			fmt.Println("eq band must be low, mid, or high")
		}

	case "crossfader":
		if len(args) != 1 {
			fmt.Println("usage: crossfader <0..1>")
			return true
		}
		pos, err := strconv.ParseFloat(args[0], 32)
		if err != nil {
			fmt.Println("crossfader: invalid number")
			return true
		}
		abi.MixerSetCrossfader(float32(pos))

	case "sync_enable":
		slaveID, masterID, ok := twoDecks(args)
		if !ok {
			fmt.Println("usage: sync_enable <slave> <master>")
			return true
		}
		abi.SyncEnable(slaveID, masterID)

	case "sync_disable":
		if deckID, ok := deckArg(args); ok {
			abi.SyncDisable(deckID)
		}

	case "sync_align":
		slaveID, masterID, ok := twoDecks(args)
		if !ok {
			fmt.Println("usage: sync_align <slave> <master>")
			return true
		}
		abi.SyncAlignNow(slaveID, masterID)

	case "analyze":
		deckID, ok := deckArg(args)
		if !ok {
			fmt.Println("usage: analyze <deck>")
			return true
		}
		bpm := abi.AnalyzeBPM(deckID)
		offset := abi.AnalyzeBeatOffset(deckID, bpm)
		fmt.Printf("deck %d: bpm=%.1f beat_offset=%.3fs\n", deckID, bpm, offset)
		abi.DeckSetBPM(deckID, bpm)
		abi.DeckSetBeatOffset(deckID, offset)

	default:
		fmt.Printf("unknown command: %s (try 'help')\n", cmd)
	}
	return true
}

func printHelp() {
	fmt.Println(`commands:
  load <deck> <path>           unload <deck>
  play <deck>                  play_synced <deck> <master>
  pause <deck>                 stop_deck <deck>
  seek <deck> <sec>             position <deck>
  tempo <deck> <ratio>          pitch <deck> <semitones>
  volume <deck> <0..1>          eq <deck> <low|mid|high> <gain>
  crossfader <0..1>
  sync_enable <slave> <master>  sync_disable <deck>
  sync_align <slave> <master>
  analyze <deck>
  start / stop                  quit`)
}

func parseDeck(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil || (id != 0 && id != 1) {
		return 0, false
	}
	return id, true
}

func deckArg(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	return parseDeck(args[0])
}

func twoDecks(args []string) (int, int, bool) {
	if len(args) != 2 {
		return 0, 0, false
	}
	a, ok1 := parseDeck(args[0])
	b, ok2 := parseDeck(args[1])
	return a, b, ok1 && ok2
}

func deckAndString(args []string) (int, string, bool) {
	if len(args) != 2 {
		return 0, "", false
	}
	id, ok := parseDeck(args[0])
	return id, args[1], ok
}

func deckAndFloat(args []string) (int, float64, bool) {
	if len(args) != 2 {
		return 0, 0, false
	}
	id, ok := parseDeck(args[0])
	v, err := strconv.ParseFloat(args[1], 64)
	return id, v, ok && err == nil
}
