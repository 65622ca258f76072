package audio

// Ring is the session-wide audio history buffer. It accumulates every sample
// fed into the pipeline up to a capacity in seconds; when the cap is
// exceeded the oldest samples are dropped and a time offset advances so that
// absolute stream timestamps stay consistent across evictions.
//
// Ring is not safe for concurrent use; a session feeds it from a single
// goroutine.
type Ring struct {
	samples    []float32
	maxSamples int
	sampleRate int
	offset     float64 // stream seconds evicted or cleared from the front
	evicted    uint64  // total samples dropped under the cap
}

// NewRing creates a history buffer holding at most maxSeconds of audio at
// the given sample rate.
func NewRing(sampleRate int, maxSeconds float64) *Ring {
	maxSamples := int(maxSeconds * float64(sampleRate))
	if maxSamples < sampleRate {
		maxSamples = sampleRate
	}
	return &Ring{
		samples:    make([]float32, 0, maxSamples),
		maxSamples: maxSamples,
		sampleRate: sampleRate,
	}
}

// Append adds a chunk to the history, evicting the oldest samples when the
// cap is exceeded.
func (r *Ring) Append(chunk []float32) {
	r.samples = append(r.samples, chunk...)
	if len(r.samples) > r.maxSamples {
		excess := len(r.samples) - r.maxSamples
		copy(r.samples, r.samples[excess:])
		r.samples = r.samples[:r.maxSamples]
		r.offset += Duration(excess, r.sampleRate)
		r.evicted += uint64(excess)
	}
}

// EndTime returns the absolute stream time of the newest buffered sample.
func (r *Ring) EndTime() float64 {
	return r.offset + Duration(len(r.samples), r.sampleRate)
}

// Offset returns the stream time of the oldest buffered sample.
func (r *Ring) Offset() float64 {
	return r.offset
}

// Len returns the number of buffered samples.
func (r *Ring) Len() int {
	return len(r.samples)
}

// Evicted returns the total number of samples dropped under the cap.
func (r *Ring) Evicted() uint64 {
	return r.evicted
}

// Tail returns a copy of the most recent seconds of audio, shorter when the
// buffer holds less. Used to seed an utterance with pre-roll so speech
// onsets are not clipped.
func (r *Ring) Tail(seconds float64) []float32 {
	n := int(seconds * float64(r.sampleRate))
	if n > len(r.samples) {
		n = len(r.samples)
	}
	if n <= 0 {
		return nil
	}
	tail := make([]float32, n)
	copy(tail, r.samples[len(r.samples)-n:])
	return tail
}

// Clear drops all buffered samples and advances the offset past them, as
// after a finalized utterance has consumed the span.
func (r *Ring) Clear() {
	r.offset += Duration(len(r.samples), r.sampleRate)
	r.samples = r.samples[:0]
}
