// Package transcript defines the word and event types flowing out of the
// recognition pipeline and reconciles overlapping transcription hypotheses
// into a monotonically-growing committed transcript with a provisional tail.
package transcript
