// Package segment turns a voiced/unvoiced chunk stream into utterances: it
// opens them with pre-roll on speech onset, rejects short noise bursts,
// finalizes on sustained silence, and drives interim and final recognition
// through the transcriber.
package segment
