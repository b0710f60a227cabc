// Package beatsync keeps one deck's tempo and beat phase locked to another
// deck's, mirroring a DJ riding a pitch fader and nudging jog wheels.
package beatsync

import (
	"math"
	"sync"
)

// Deck is the subset of *deck.Deck the sync manager needs. It is declared
// locally to avoid an import cycle with package deck.
type Deck interface {
	GetBPM() float64
	GetBeatOffset() float64
	GetPosition() float64
	GetSamplePosition() int64
	SetSamplePosition(pos int64, forceSync bool)
	GetPhase() float64
	SetTempo(tempo float64)
	Play(startFrame int64)
}

// phaseCheckEvery throttles phase correction to once every N calls to
// Update, matching the ~30ms cadence (3 callbacks at 512 samples / 44.1kHz)
// the original engine used to avoid audible correction clicks.
const phaseCheckEvery = 3

// maxPhaseCorrectionSeconds bounds a single phase nudge to 50ms.
const maxPhaseCorrectionSeconds = 0.05

// phaseTolerance is the fraction of a beat below which no correction is
// applied.
const phaseTolerance = 0.02

// Manager tracks which deck (if any) is synced to which.
type Manager struct {
	mu       sync.Mutex
	enabled  bool
	masterID int
	slaveID  int

	frameCounter int
}

// New returns a disabled Manager.
func New() *Manager {
	return &Manager{masterID: -1, slaveID: -1}
}

// Enable locks slaveID's tempo and phase to masterID's.
func (m *Manager) Enable(slaveID, masterID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
	m.masterID = masterID
	m.slaveID = slaveID
}

// Disable turns sync off if deckID is the currently synced slave.
func (m *Manager) Disable(deckID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slaveID == deckID {
		m.enabled = false
		m.masterID = -1
		m.slaveID = -1
	}
}

// Enabled reports whether sync is currently active.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// AlignNow performs a one-shot tempo and phase alignment of slave to
// master, without needing sync to be enabled. It matches tempo, then
// copies master's cursor onto slave's and flushes slave's stretcher.
func AlignNow(slave, master Deck, sampleRate int) {
	if slave == nil || master == nil {
		return
	}

	masterBPM := master.GetBPM()
	slaveBPM := slave.GetBPM()
	if masterBPM > 0 && slaveBPM > 0 {
		slave.SetTempo(masterBPM / slaveBPM)
	}

	slave.SetSamplePosition(master.GetSamplePosition(), true)
}

// Update runs the steady-state sync loop: tempo is matched every call,
// phase is checked (and, if off by more than phaseTolerance of a beat,
// nudged within maxPhaseCorrectionSeconds) every phaseCheckEvery calls.
// Update must be called once per audio callback from the render path.
func (m *Manager) Update(decks [2]Deck, sampleRate int) {
	m.mu.Lock()
	enabled := m.enabled
	masterID, slaveID := m.masterID, m.slaveID
	m.mu.Unlock()

	if !enabled || masterID < 0 || masterID > 1 || slaveID < 0 || slaveID > 1 {
		return
	}

	master := decks[masterID]
	slave := decks[slaveID]
	if master == nil || slave == nil {
		return
	}

	masterBPM := master.GetBPM()
	slaveBPM := slave.GetBPM()
	if masterBPM <= 0 || slaveBPM <= 0 {
		return
	}

	tempoRatio := masterBPM / slaveBPM
	slave.SetTempo(tempoRatio)

	m.mu.Lock()
	m.frameCounter++
	due := m.frameCounter >= phaseCheckEvery
	if due {
		m.frameCounter = 0
	}
	m.mu.Unlock()
	if !due {
		return
	}

	masterPhase := master.GetPhase()
	slavePhase := slave.GetPhase()

	phaseDiff := masterPhase - slavePhase
	if phaseDiff > 0.5 {
		phaseDiff -= 1.0
	}
	if phaseDiff < -0.5 {
		phaseDiff += 1.0
	}

	if math.Abs(phaseDiff) <= phaseTolerance {
		return
	}

	slaveSecondsPerBeat := 60.0 / (slaveBPM * tempoRatio)
	correctionSamples := int64(phaseDiff * slaveSecondsPerBeat * float64(sampleRate))

	maxCorrection := int64(maxPhaseCorrectionSeconds * float64(sampleRate))
	if correctionSamples > maxCorrection {
		correctionSamples = maxCorrection
	}
	if correctionSamples < -maxCorrection {
		correctionSamples = -maxCorrection
	}

	newPos := slave.GetSamplePosition() + correctionSamples
	if newPos >= 0 {
		slave.SetSamplePosition(newPos, false)
	}
}

// PlaySynced cues slave to start playback already phase-matched to master's
// next beat, for the case where master and slave run at different tempos
// and a phase-only alignment isn't possible because sync was never
// steady-state engaged. It mirrors a DJ cueing a track at its first kick
// and releasing play exactly on the master's next beat.
func PlaySynced(slave, master Deck, sampleRate int) {
	masterBPM := master.GetBPM()
	slaveBPM := slave.GetBPM()

	if masterBPM <= 0 || slaveBPM <= 0 {
		slave.Play(-1)
		return
	}

	tempoRatio := masterBPM / slaveBPM
	slave.SetTempo(tempoRatio)

	if math.Abs(tempoRatio-1.0) < 0.01 {
		AlignNow(slave, master, sampleRate)
		slave.Play(-1)
		return
	}

	masterFirstKick := master.GetBeatOffset()
	slaveFirstKick := slave.GetBeatOffset()

	masterSPB := 60.0 / masterBPM
	slaveSPB := 60.0 / slaveBPM

	masterPos := master.GetPosition()
	masterTimeSinceKick := masterPos - masterFirstKick
	masterPhase := math.Mod(masterTimeSinceKick, masterSPB)
	if masterPhase < 0 {
		masterPhase += masterSPB
	}
	timeToMasterKick := masterSPB - masterPhase

	slaveAdvance := timeToMasterKick * tempoRatio
	slaveStartPos := slaveFirstKick - slaveAdvance
	for slaveStartPos < 0 {
		slaveStartPos += slaveSPB
	}

	slaveStartSamples := int64(slaveStartPos * float64(sampleRate))
	slave.Play(slaveStartSamples)
}
