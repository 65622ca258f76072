package vad

import "math"

// FrameScorer scores one fixed-size frame of normalized samples with a
// speech probability in [0, 1]. Implementations may keep recurrent internal
// state between frames; ResetState clears it. A scorer instance must not be
// shared across sessions.
type FrameScorer interface {
	ScoreFrame(frame []float32, sampleRate int) (float32, error)
	ResetState() error
}

// EnergyScorer is a stateless FrameScorer mapping frame RMS level to a
// probability. It stands in wherever a neural model is not available and
// keeps the detector testable without model weights.
type EnergyScorer struct {
	// fullScaleRMS is the RMS level mapped to probability 1.0.
	fullScaleRMS float64
}

// NewEnergyScorer creates an energy-based scorer with the default scale.
func NewEnergyScorer() *EnergyScorer {
	return &EnergyScorer{fullScaleRMS: 0.3}
}

// ScoreFrame maps the frame's RMS level linearly onto [0, 1].
func (s *EnergyScorer) ScoreFrame(frame []float32, sampleRate int) (float32, error) {
	if len(frame) == 0 {
		return 0, nil
	}
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	rms := math.Sqrt(sum / float64(len(frame)))

	p := rms / s.fullScaleRMS
	if p > 1 {
		p = 1
	}
	return float32(p), nil
}

// ResetState is a no-op; the scorer keeps no recurrent state.
func (s *EnergyScorer) ResetState() error {
	return nil
}
