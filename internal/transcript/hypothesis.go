package transcript

import (
	"math"
	"strings"
)

const (
	// commitEpsilon is the tolerance when dropping inserted words that start
	// behind the commit watermark.
	commitEpsilon = 0.1

	// overlapWindow bounds how far from the watermark an incoming hypothesis
	// may start and still be checked for n-gram overlap with committed text.
	overlapWindow = 1.0

	// maxOverlapNGram is the longest word n-gram compared during overlap
	// removal.
	maxOverlapNGram = 5

	// repetition collapse scans n-gram lengths in [minRepeatNGram,
	// maxRepeatNGram] for a block immediately followed by its own copy.
	minRepeatNGram = 3
	maxRepeatNGram = 8
)

// HypothesisBuffer reconciles successive overlapping word hypotheses into
// three ordered queues: committed words (immutable once appended), the
// stable tail of the previous hypothesis, and the incoming hypothesis being
// reconciled. Committed timestamps never decrease and committed text is
// never rewritten.
//
// HypothesisBuffer is not safe for concurrent use; one session owns one
// buffer and drives it from a single goroutine.
type HypothesisBuffer struct {
	committed []Word
	stable    []Word
	incoming  []Word

	lastCommittedTime float64
}

// NewHypothesisBuffer creates an empty buffer.
func NewHypothesisBuffer() *HypothesisBuffer {
	return &HypothesisBuffer{}
}

// Insert replaces the incoming queue with a new hypothesis. Each word's
// timestamps are shifted by offset into absolute stream time; words starting
// at or before the commit watermark (minus a small tolerance) are dropped.
// When the hypothesis starts within one second of the watermark, its leading
// words are compared against the committed tail for n-gram overlap and the
// matched prefix is removed, so re-recognized audio does not duplicate text.
func (h *HypothesisBuffer) Insert(words []Word, offset float64) {
	incoming := make([]Word, 0, len(words))
	for _, w := range words {
		w.Start += offset
		w.End += offset
		if w.Start > h.lastCommittedTime-commitEpsilon {
			incoming = append(incoming, w)
		}
	}
	h.incoming = incoming

	if len(h.incoming) == 0 || len(h.committed) == 0 {
		return
	}
	if math.Abs(h.incoming[0].Start-h.lastCommittedTime) >= overlapWindow {
		return
	}

	limit := len(h.committed)
	if len(h.incoming) < limit {
		limit = len(h.incoming)
	}
	if limit > maxOverlapNGram {
		limit = maxOverlapNGram
	}
	for n := 1; n <= limit; n++ {
		if h.committedTail(n) == h.incomingHead(n) {
			h.incoming = h.incoming[n:]
			break
		}
	}
}

// Flush reconciles incoming against stable and returns the words committed
// by this call. Leading words matching by exact text are committed and
// advance the watermark. With final set, every remaining stable then
// incoming word is force-committed and both queues are cleared; otherwise
// the unmatched incoming remainder becomes the new stable tail.
func (h *HypothesisBuffer) Flush(final bool) []Word {
	var committed []Word

	for len(h.incoming) > 0 && len(h.stable) > 0 {
		if h.incoming[0].Text != h.stable[0].Text {
			break
		}
		committed = append(committed, h.incoming[0])
		h.lastCommittedTime = h.incoming[0].End
		h.incoming = h.incoming[1:]
		h.stable = h.stable[1:]
	}

	if final {
		for _, w := range h.stable {
			committed = append(committed, w)
			h.lastCommittedTime = w.End
		}
		for _, w := range h.incoming {
			committed = append(committed, w)
			h.lastCommittedTime = w.End
		}
		h.stable = nil
		h.incoming = nil
	} else {
		h.stable = h.incoming
		h.incoming = nil
	}

	h.committed = append(h.committed, committed...)
	return committed
}

// CommittedText returns the space-joined committed words.
func (h *HypothesisBuffer) CommittedText() string {
	return joinWords(h.committed)
}

// ProvisionalText returns the space-joined stable tail, with runaway
// self-repetition collapsed: if some 3..8-word block is immediately followed
// by an identical block, everything after the first occurrence is dropped.
func (h *HypothesisBuffer) ProvisionalText() string {
	return joinWords(collapseRepetition(h.stable))
}

// Watermark returns the end time of the last committed word.
func (h *HypothesisBuffer) Watermark() float64 {
	return h.lastCommittedTime
}

// Reset clears all queues and the watermark, as when a new utterance opens.
func (h *HypothesisBuffer) Reset() {
	h.committed = nil
	h.stable = nil
	h.incoming = nil
	h.lastCommittedTime = 0
}

func (h *HypothesisBuffer) committedTail(n int) string {
	return joinWords(h.committed[len(h.committed)-n:])
}

func (h *HypothesisBuffer) incomingHead(n int) string {
	return joinWords(h.incoming[:n])
}

func collapseRepetition(words []Word) []Word {
	for n := minRepeatNGram; n <= maxRepeatNGram; n++ {
		for i := 0; i+2*n <= len(words); i++ {
			if wordsEqual(words[i:i+n], words[i+n:i+2*n]) {
				return words[:i+n]
			}
		}
	}
	return words
}

func wordsEqual(a, b []Word) bool {
	for i := range a {
		if a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}

func joinWords(words []Word) string {
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
