package audio

import (
	"math"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 16000))
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != wavHeaderSize+len(samples)*2 {
		t.Errorf("Expected %d bytes, got %d", wavHeaderSize+len(samples)*2, len(data))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("Expected RIFF/WAVE header markers")
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("Expected error for empty samples")
	}
	if _, err := EncodeWAV(make([]float32, 100), 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := make([]float32, 4800)
	for i := range samples {
		samples[i] = float32(math.Sin(2*math.Pi*200*float64(i)/16000)) * 0.8
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if math.Abs(float64(decoded[i]-samples[i])) > 1.0/32768.0 {
			t.Fatalf("Sample %d: expected %f, got %f", i, samples[i], decoded[i])
		}
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	if _, _, err := DecodeWAV(nil); err == nil {
		t.Error("Expected error for empty data")
	}
	if _, _, err := DecodeWAV(make([]byte, 20)); err == nil {
		t.Error("Expected error for truncated header")
	}

	bad := make([]byte, wavHeaderSize)
	copy(bad, "JUNK")
	if _, _, err := DecodeWAV(bad); err == nil {
		t.Error("Expected error for missing RIFF marker")
	}
}

func TestGetWAVInfo(t *testing.T) {
	samples := make([]float32, 32000) // 2s at 16kHz
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	info, err := GetWAVInfo(data)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}

	if info.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}
	if info.BitDepth != 16 {
		t.Errorf("Expected 16-bit depth, got %d", info.BitDepth)
	}
	if info.Samples != 32000 {
		t.Errorf("Expected 32000 samples, got %d", info.Samples)
	}
	if math.Abs(info.Duration-2.0) > 1e-9 {
		t.Errorf("Expected 2.0s duration, got %f", info.Duration)
	}
}
