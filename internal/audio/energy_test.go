package audio

import (
	"math"
	"testing"
)

func TestEnergyMeterSilence(t *testing.T) {
	meter := NewEnergyMeter(0)

	energy := meter.Measure(make([]float32, 512))

	// Digital silence lands on the dB floor, which clamps to zero.
	if energy != 0 {
		t.Errorf("Expected zero energy for silence, got %f", energy)
	}
}

func TestEnergyMeterFullScale(t *testing.T) {
	meter := NewEnergyMeter(0)

	samples := make([]float32, 512)
	for i := range samples {
		samples[i] = 1.0
	}

	energy := meter.Measure(samples)

	// Full-scale DC: 10*log10(1) + 100 = 100
	if math.Abs(energy-100) > 0.01 {
		t.Errorf("Expected ~100 for full-scale signal, got %f", energy)
	}
}

func TestEnergyMeterMonotonic(t *testing.T) {
	meter := NewEnergyMeter(0)

	quiet := make([]float32, 512)
	loud := make([]float32, 512)
	for i := range quiet {
		quiet[i] = 0.01
		loud[i] = 0.5
	}

	qe := meter.Measure(quiet)
	le := meter.Measure(loud)

	if le <= qe {
		t.Errorf("Expected louder signal to score higher: quiet=%f loud=%f", qe, le)
	}
}

func TestEnergyMeterAmbient(t *testing.T) {
	meter := NewEnergyMeter(3)

	if meter.Ambient() != 0 {
		t.Errorf("Expected zero ambient before any reading, got %f", meter.Ambient())
	}

	samples := make([]float32, 512)
	for i := range samples {
		samples[i] = 0.1
	}

	first := meter.Measure(samples)
	meter.Measure(samples)
	meter.Measure(samples)

	// Identical readings: ambient equals the reading itself.
	if math.Abs(meter.Ambient()-first) > 1e-9 {
		t.Errorf("Expected ambient %f, got %f", first, meter.Ambient())
	}

	// Window slides: a loud burst raises the ambient average.
	loud := make([]float32, 512)
	for i := range loud {
		loud[i] = 0.9
	}
	meter.Measure(loud)

	if meter.Ambient() <= first {
		t.Errorf("Expected ambient to rise after loud reading, got %f", meter.Ambient())
	}
}

func TestEnergyMeterWindowEviction(t *testing.T) {
	meter := NewEnergyMeter(2)

	quiet := make([]float32, 512)
	loud := make([]float32, 512)
	for i := range quiet {
		quiet[i] = 0.01
		loud[i] = 0.9
	}

	meter.Measure(quiet)
	meter.Measure(loud)
	meter.Measure(loud)

	// Quiet reading has been evicted from the two-slot window.
	loudEnergy := meter.Current()
	if math.Abs(meter.Ambient()-loudEnergy) > 1e-9 {
		t.Errorf("Expected ambient to equal loud energy %f after eviction, got %f", loudEnergy, meter.Ambient())
	}
}

func TestEnergyMeterReset(t *testing.T) {
	meter := NewEnergyMeter(0)

	samples := make([]float32, 512)
	for i := range samples {
		samples[i] = 0.5
	}
	meter.Measure(samples)

	meter.Reset()

	if meter.Current() != 0 {
		t.Errorf("Expected zero current after reset, got %f", meter.Current())
	}
	if meter.Ambient() != 0 {
		t.Errorf("Expected zero ambient after reset, got %f", meter.Ambient())
	}
}

func TestEnergyMeterEmptyFrame(t *testing.T) {
	meter := NewEnergyMeter(0)

	if e := meter.Measure(nil); e != 0 {
		t.Errorf("Expected zero energy for empty frame, got %f", e)
	}
}
