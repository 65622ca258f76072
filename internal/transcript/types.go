package transcript

// Word is a single recognized word with absolute stream timestamps in
// seconds.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// EventKind classifies a transcript event.
type EventKind string

const (
	// EventInterim carries a provisional mid-utterance hypothesis.
	EventInterim EventKind = "interim"
	// EventFinal carries the confirmed text of a finalized utterance.
	EventFinal EventKind = "final"
	// EventEmpty marks an utterance whose recognition produced no text.
	EventEmpty EventKind = "empty"
	// EventShort marks an utterance discarded for being below the minimum
	// duration.
	EventShort EventKind = "short"
	// EventFiltered marks an utterance whose text was rejected as a
	// recognizer artifact.
	EventFiltered EventKind = "filtered"
	// EventInvalid marks an utterance whose recognition failed.
	EventInvalid EventKind = "invalid"
)

// Event is one transcript notification emitted by the pipeline. Start and
// End are absolute stream times in seconds. Text is empty for every kind
// except interim and final.
type Event struct {
	Kind        EventKind `json:"kind"`
	UtteranceID string    `json:"utterance_id"`
	Text        string    `json:"text"`
	Start       float64   `json:"start"`
	End         float64   `json:"end"`
}

// Span is one confirmed utterance in the accumulated session transcript.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
