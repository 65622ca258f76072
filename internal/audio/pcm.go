package audio

// PCM sample conversion helpers. All audio inside the pipeline is mono
// float32 in [-1, 1); the wire format and the WAV codec use little-endian
// 16-bit PCM.

const pcm16Scale = 32768.0

// DecodePCM16 converts little-endian 16-bit PCM bytes to normalized float32
// samples. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(v) / pcm16Scale
	}
	return samples
}

// EncodePCM16 converts normalized float32 samples to little-endian 16-bit
// PCM bytes, clamping values outside [-1, 1).
func EncodePCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(clampSample(s) * pcm16Scale)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return data
}

func clampSample(s float32) float32 {
	if s > 1.0-1.0/pcm16Scale {
		return 1.0 - 1.0/pcm16Scale
	}
	if s < -1.0 {
		return -1.0
	}
	return s
}

// Duration returns the play time in seconds of a sample count at the given
// rate.
func Duration(sampleCount, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(sampleCount) / float64(sampleRate)
}
