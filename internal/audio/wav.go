package audio

import (
	"encoding/binary"
	"fmt"
)

// WAV container handling for mono 16-bit PCM, used when uploading utterance
// audio to a transcription backend.

const (
	wavHeaderSize = 44
	wavFormatPCM  = 1
	wavBitDepth   = 16
	wavChannels   = 1
)

// WAVInfo describes a parsed WAV header.
type WAVInfo struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bit_depth"`
	Samples    int     `json:"samples"`
	Duration   float64 `json:"duration_seconds"`
}

// EncodeWAV wraps normalized float32 samples into a mono 16-bit PCM WAV
// container.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	pcm := EncodePCM16(samples)
	buf := make([]byte, wavHeaderSize+len(pcm))

	byteRate := sampleRate * wavChannels * wavBitDepth / 8
	blockAlign := wavChannels * wavBitDepth / 8

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], wavChannels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], wavBitDepth)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[wavHeaderSize:], pcm)

	return buf, nil
}

// DecodeWAV extracts normalized samples and the sample rate from a mono
// 16-bit PCM WAV container.
func DecodeWAV(data []byte) ([]float32, int, error) {
	info, err := GetWAVInfo(data)
	if err != nil {
		return nil, 0, err
	}
	if info.Channels != wavChannels {
		return nil, 0, fmt.Errorf("expected mono audio, got %d channels", info.Channels)
	}
	if info.BitDepth != wavBitDepth {
		return nil, 0, fmt.Errorf("expected 16-bit PCM, got %d-bit", info.BitDepth)
	}

	dataLen := int(binary.LittleEndian.Uint32(data[40:44]))
	if wavHeaderSize+dataLen > len(data) {
		dataLen = len(data) - wavHeaderSize
	}
	return DecodePCM16(data[wavHeaderSize : wavHeaderSize+dataLen]), info.SampleRate, nil
}

// GetWAVInfo parses and validates a WAV header.
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if len(data) < wavHeaderSize {
		return nil, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}
	if string(data[12:16]) != "fmt " {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if format := binary.LittleEndian.Uint16(data[20:22]); format != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV format code %d", format)
	}
	if string(data[36:40]) != "data" {
		return nil, fmt.Errorf("missing data chunk")
	}

	info := &WAVInfo{
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		BitDepth:   int(binary.LittleEndian.Uint16(data[34:36])),
	}
	if info.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", info.SampleRate)
	}
	if info.Channels <= 0 || info.BitDepth <= 0 {
		return nil, fmt.Errorf("invalid channel/bit-depth combination: %d/%d", info.Channels, info.BitDepth)
	}

	dataLen := int(binary.LittleEndian.Uint32(data[40:44]))
	info.Samples = dataLen / (info.BitDepth / 8) / info.Channels
	info.Duration = float64(info.Samples) / float64(info.SampleRate)

	return info, nil
}
