// Package audio handles PCM sample processing for the streaming pipeline.
// It implements sample format conversion, log-scale energy measurement,
// the rolling audio history buffer, packet reordering and WAV encoding
// for transcription uploads.
package audio
