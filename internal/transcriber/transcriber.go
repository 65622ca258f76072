package transcriber

import (
	"context"
	"strings"

	"github.com/donggyun112/PipeChat-server/internal/transcript"
)

const (
	// msThreshold: segment timestamps above this value are assumed to be in
	// milliseconds and are converted to seconds.
	msThreshold = 100.0

	// nominalSpanSeconds is the window over which bare-text results are
	// evenly spaced when the backend returns no segment timestamps.
	nominalSpanSeconds = 10.0
)

// Options carries per-request recognition parameters.
type Options struct {
	// Language is an ISO 639-1 hint, empty for auto-detection.
	Language string
	// Prompt is trailing context from earlier confirmed text, used to bias
	// the recognizer.
	Prompt string
}

// Segment is one timed span of recognized text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a recognition result. Segments carries timed spans when the
// backend provides them; Text is the full transcription either way.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// Transcriber recognizes speech in a block of normalized mono PCM samples.
// Implementations must be safe for sequential reuse; one session issues at
// most one call at a time.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error)
}

// Words converts the result into timed words relative to the start of the
// transcribed audio. Segment timestamps that look like milliseconds are
// normalized to seconds; each segment's words are spaced evenly across its
// span. Without segments, the bare text is spaced evenly across a nominal
// ten-second window.
func (r Result) Words() []transcript.Word {
	if len(r.Segments) > 0 {
		var words []transcript.Word
		for _, seg := range r.Segments {
			start := normalizeSeconds(seg.Start)
			end := normalizeSeconds(seg.End)
			words = append(words, spaceWords(seg.Text, start, end)...)
		}
		return words
	}
	return spaceWords(r.Text, 0, nominalSpanSeconds)
}

// IsEmpty reports whether the result carries no text at all.
func (r Result) IsEmpty() bool {
	if strings.TrimSpace(r.Text) != "" {
		return false
	}
	for _, seg := range r.Segments {
		if strings.TrimSpace(seg.Text) != "" {
			return false
		}
	}
	return true
}

func normalizeSeconds(t float64) float64 {
	if t > msThreshold {
		return t / 1000.0
	}
	return t
}

// spaceWords splits text into words and distributes them evenly across
// [start, end].
func spaceWords(text string, start, end float64) []transcript.Word {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	if end < start {
		end = start
	}
	step := (end - start) / float64(len(fields))
	words := make([]transcript.Word, len(fields))
	for i, f := range fields {
		words[i] = transcript.Word{
			Text:  f,
			Start: start + float64(i)*step,
			End:   start + float64(i+1)*step,
		}
	}
	return words
}
