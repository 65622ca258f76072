package audio

import "math"

const (
	// energyFloor guards the log against exact silence.
	energyFloor = 1e-10

	// defaultEnergyWindow is the number of recent readings averaged for the
	// ambient energy level.
	defaultEnergyWindow = 10
)

// EnergyMeter computes a log-scale loudness reading per sample block and
// keeps a short rolling window of readings whose average smooths out
// instantaneous spikes.
type EnergyMeter struct {
	window  []float64
	size    int
	current float64
}

// NewEnergyMeter creates a meter with the given rolling window size.
// A non-positive size falls back to the default of 10 readings.
func NewEnergyMeter(windowSize int) *EnergyMeter {
	if windowSize <= 0 {
		windowSize = defaultEnergyWindow
	}
	return &EnergyMeter{
		window: make([]float64, 0, windowSize),
		size:   windowSize,
	}
}

// Measure computes the energy of a block of normalized samples, records it
// in the rolling window and returns it. The scale is 10*log10(meanSquare)
// shifted by +100 so that typical speech lands in the 40-100 range, clamped
// at zero for near-silence.
func (m *EnergyMeter) Measure(samples []float32) float64 {
	energy := energyOf(samples)
	m.current = energy

	if len(m.window) == m.size {
		copy(m.window, m.window[1:])
		m.window = m.window[:m.size-1]
	}
	m.window = append(m.window, energy)

	return energy
}

// Current returns the most recent reading.
func (m *EnergyMeter) Current() float64 {
	return m.current
}

// Ambient returns the average of the rolling window, used wherever a
// smoothed "background" energy level is needed. Returns 0 before the first
// measurement.
func (m *EnergyMeter) Ambient() float64 {
	if len(m.window) == 0 {
		return 0
	}
	var sum float64
	for _, e := range m.window {
		sum += e
	}
	return sum / float64(len(m.window))
}

// Reset clears the rolling window and the current reading.
func (m *EnergyMeter) Reset() {
	m.window = m.window[:0]
	m.current = 0
}

func energyOf(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	meanSquare := sum / float64(len(samples))

	energy := 10.0*math.Log10(meanSquare+energyFloor) + 100.0
	if energy < 0 {
		energy = 0
	}
	return energy
}
