// Package vad detects voice activity in streaming PCM audio. It accumulates
// chunks into fixed-size frames, scores them through a pluggable model
// boundary and runs a debounced state machine that emits stable
// speech-start and speech-end transitions.
package vad
