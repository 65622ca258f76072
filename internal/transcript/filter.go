package transcript

import (
	"strings"
	"unicode"
)

const (
	// fillerRunes are hesitation sounds the recognizer tends to hallucinate
	// in long repeats on noisy input.
	fillerRunes = "아으음애에오우응헐네"

	// repeatedSyllables are syllables that show up as stuck repeats
	// ("하하하하하") when the recognizer loops on noise.
	repeatedSyllables = "가나다라마바사아자차카타파하으"

	// fillerRunLimit rejects text containing a consecutive run of the same
	// filler/syllable rune at least this long.
	fillerRunLimit = 5

	// digitRatioLimit rejects text longer than digitLengthLimit runes when
	// more than this fraction of them are digits.
	digitRatioLimit  = 0.5
	digitLengthLimit = 5
)

// blacklistedSubstrings are case-insensitive markers of broadcast-caption
// training artifacts leaking into the output.
var blacklistedSubstrings = []string{"MBC"}

// Filter screens finalized transcription text for recognizer artifacts that
// should not enter the transcript.
type Filter struct {
	fillers   map[rune]bool
	blacklist []string
}

// NewFilter creates a filter with the default heuristics.
func NewFilter() *Filter {
	fillers := make(map[rune]bool, len(fillerRunes)+len(repeatedSyllables))
	for _, r := range fillerRunes {
		fillers[r] = true
	}
	for _, r := range repeatedSyllables {
		fillers[r] = true
	}
	return &Filter{
		fillers:   fillers,
		blacklist: blacklistedSubstrings,
	}
}

// Reject reports whether text should be discarded, along with the matched
// heuristic for logging. Empty text is not the filter's concern and passes.
func (f *Filter) Reject(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	if trimmed == "!" {
		return "punctuation-only", true
	}

	digits := 0
	total := 0
	var prev rune
	run := 0
	for _, r := range trimmed {
		total++
		if unicode.IsDigit(r) {
			digits++
		}
		// Only consecutive runs count: the same rune scattered through a
		// sentence is normal Korean text.
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= fillerRunLimit && (f.fillers[r] || isHangulJamo(r)) {
			return "filler-repetition", true
		}
	}

	if total > digitLengthLimit && float64(digits)/float64(total) > digitRatioLimit {
		return "digit-heavy", true
	}

	upper := strings.ToUpper(trimmed)
	for _, marker := range f.blacklist {
		if strings.Contains(upper, marker) {
			return "blacklisted", true
		}
	}

	return "", false
}

// isHangulJamo reports whether r is a bare Hangul compatibility jamo, which
// never appears in legitimate recognized Korean text.
func isHangulJamo(r rune) bool {
	return r >= 0x3131 && r <= 0x3163
}
