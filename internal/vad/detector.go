package vad

import (
	"fmt"

	"github.com/donggyun112/PipeChat-server/internal/audio"
)

// FrameSize is the number of samples per scored frame (32 ms at 16 kHz).
const FrameSize = 512

// State is the debounced speaking state.
type State int

const (
	StateSilent State = iota
	StateSpeaking
)

func (s State) String() string {
	if s == StateSpeaking {
		return "speaking"
	}
	return "silent"
}

// Config contains detector parameters. Times are in seconds of stream time.
type Config struct {
	SampleRate         int
	Threshold          float32 // speech probability threshold
	EnergyThreshold    float64 // ambient energy gate
	DebounceTime       float64 // sliding decision window span
	SilenceLimit       float64 // continuous silence required to leave speaking
	ModelResetInterval float64 // recurrent model state reset period
	EnergyWindow       int     // readings in the ambient energy window
}

// Decision is the combined per-chunk detection outcome.
type Decision struct {
	Probability float32 `json:"probability"`
	Energy      float64 `json:"energy"`
	Voiced      bool    `json:"voiced"`
}

// Transition is one debounced state change with the stream time and ambient
// energy at the moment it fired.
type Transition struct {
	To     State
	Time   float64
	Energy float64
}

// DetectorStats reports detector counters.
type DetectorStats struct {
	TotalFrames     uint64  `json:"total_frames"`
	VoicedChunks    uint64  `json:"voiced_chunks"`
	TotalChunks     uint64  `json:"total_chunks"`
	ScorerErrors    uint64  `json:"scorer_errors"`
	VoicedRatio     float64 `json:"voiced_ratio"`
	CurrentState    string  `json:"current_state"`
	AmbientEnergy   float64 `json:"ambient_energy"`
	LastProbability float32 `json:"last_probability"`
}

type debounceEntry struct {
	time   float64
	voiced bool
}

// Detector accumulates arbitrary-sized chunks into whole frames, combines
// the scorer's probability with an ambient energy gate, and debounces the
// result into a speaking-state machine. All timing is stream time derived
// from the sample count, so identical input produces identical transitions
// regardless of processing speed.
//
// Detector is not safe for concurrent use; each session owns one instance
// with its own scorer state.
type Detector struct {
	config Config
	scorer FrameScorer
	meter  *audio.EnergyMeter

	pending []float32 // partial frame carried to the next chunk
	samples uint64    // total samples consumed, the stream clock

	state          State
	lastVoiced     bool
	lastProb       float32
	window         []debounceEntry
	lastTransition float64
	silenceStart   float64 // -1 while voiced
	lastReset      float64

	totalFrames  uint64
	totalChunks  uint64
	voicedChunks uint64
	scorerErrors uint64
}

// NewDetector creates a detector with the given scorer.
func NewDetector(config Config, scorer FrameScorer) (*Detector, error) {
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
	}
	if config.Threshold < 0 || config.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", config.Threshold)
	}
	if config.DebounceTime <= 0 {
		return nil, fmt.Errorf("debounce time must be positive, got %f", config.DebounceTime)
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer cannot be nil")
	}

	return &Detector{
		config: config,
		scorer: scorer,
		meter:  audio.NewEnergyMeter(config.EnergyWindow),
		// Allow a transition right at stream start.
		lastTransition: -config.DebounceTime,
		silenceStart:   0,
	}, nil
}

// Process consumes one chunk and returns the combined decision plus any
// debounced state transition it caused. A scorer failure keeps the previous
// decision rather than propagating the error.
func (d *Detector) Process(chunk []float32) (Decision, []Transition) {
	d.samples += uint64(len(chunk))
	d.totalChunks++
	now := d.now()

	d.meter.Measure(chunk)
	ambient := d.meter.Ambient()

	prob, scored := d.score(chunk, now)

	// No whole frame scored means no new evidence: carry the previous
	// decision whole instead of re-deriving it from the refreshed energy.
	voiced := d.lastVoiced
	if scored {
		voiced = prob > d.config.Threshold && ambient >= d.config.EnergyThreshold
	}
	d.lastVoiced = voiced
	if voiced {
		d.voicedChunks++
		d.silenceStart = -1
	} else if d.silenceStart < 0 {
		d.silenceStart = now
	}

	d.window = append(d.window, debounceEntry{time: now, voiced: voiced})
	d.evictWindow(now)

	decision := Decision{Probability: prob, Energy: d.meter.Current(), Voiced: voiced}

	if tr, ok := d.step(now, ambient); ok {
		return decision, []Transition{tr}
	}
	return decision, nil
}

// State returns the current debounced state.
func (d *Detector) State() State {
	return d.state
}

// Reset returns the detector to silent with cleared accumulation, energy
// window and scorer state. The stream clock keeps running.
func (d *Detector) Reset() error {
	d.pending = nil
	d.state = StateSilent
	d.lastVoiced = false
	d.lastProb = 0
	d.window = nil
	d.lastTransition = d.now() - d.config.DebounceTime
	d.silenceStart = d.now()
	d.meter.Reset()
	if err := d.scorer.ResetState(); err != nil {
		return fmt.Errorf("failed to reset scorer state: %w", err)
	}
	return nil
}

// Stats returns current detector counters.
func (d *Detector) Stats() DetectorStats {
	ratio := float64(0)
	if d.totalChunks > 0 {
		ratio = float64(d.voicedChunks) / float64(d.totalChunks)
	}
	return DetectorStats{
		TotalFrames:     d.totalFrames,
		VoicedChunks:    d.voicedChunks,
		TotalChunks:     d.totalChunks,
		ScorerErrors:    d.scorerErrors,
		VoicedRatio:     ratio,
		CurrentState:    d.state.String(),
		AmbientEnergy:   d.meter.Ambient(),
		LastProbability: d.lastProb,
	}
}

func (d *Detector) now() float64 {
	return float64(d.samples) / float64(d.config.SampleRate)
}

// score accumulates the chunk into whole frames and returns the mean frame
// probability plus whether any new frame was scored. When no whole frame is
// ready or the scorer fails it carries the previous probability.
func (d *Detector) score(chunk []float32, now float64) (float32, bool) {
	d.pending = append(d.pending, chunk...)
	if len(d.pending) < FrameSize {
		return d.lastProb, false
	}

	// Periodic recurrent-state reset, only between frame batches so pending
	// audio is never discarded.
	if d.config.ModelResetInterval > 0 && now-d.lastReset >= d.config.ModelResetInterval {
		if err := d.scorer.ResetState(); err != nil {
			d.scorerErrors++
		}
		d.lastReset = now
	}

	var sum float32
	frames := 0
	for len(d.pending) >= FrameSize {
		frame := d.pending[:FrameSize]
		d.pending = d.pending[FrameSize:]

		p, err := d.scorer.ScoreFrame(frame, d.config.SampleRate)
		if err != nil {
			d.scorerErrors++
			return d.lastProb, false
		}
		sum += p
		frames++
		d.totalFrames++
	}

	d.lastProb = sum / float32(frames)
	return d.lastProb, true
}

func (d *Detector) evictWindow(now float64) {
	cutoff := now - d.config.DebounceTime
	i := 0
	for i < len(d.window) && d.window[i].time < cutoff {
		i++
	}
	d.window = d.window[i:]
}

func (d *Detector) step(now, ambient float64) (Transition, bool) {
	if len(d.window) == 0 {
		return Transition{}, false
	}
	if now-d.lastTransition < d.config.DebounceTime/2 {
		return Transition{}, false
	}

	voiced := 0
	for _, e := range d.window {
		if e.voiced {
			voiced++
		}
	}
	ratio := float64(voiced) / float64(len(d.window))

	switch d.state {
	case StateSilent:
		if ratio >= 0.5 {
			d.state = StateSpeaking
			d.lastTransition = now
			return Transition{To: StateSpeaking, Time: now, Energy: ambient}, true
		}
	case StateSpeaking:
		if ratio <= 0.2 && d.silenceStart >= 0 && now-d.silenceStart >= d.config.SilenceLimit {
			d.state = StateSilent
			d.lastTransition = now
			return Transition{To: StateSilent, Time: now, Energy: ambient}, true
		}
	}
	return Transition{}, false
}
