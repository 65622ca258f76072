package audio

// Reorderer restores arrival order for sequence-numbered PCM packets at the
// ingest edge. Packets arriving out of order are held until the gap closes;
// when a gap exceeds maxGap the missing sequences are declared lost and the
// stream resumes past them, so a single dropped datagram cannot stall the
// pipeline.
//
// Reorderer is not safe for concurrent use; the ingest server feeds each
// instance from a single worker.
type Reorderer struct {
	expected uint32
	started  bool
	pending  map[uint32][]byte
	maxGap   uint32

	delivered uint64
	lost      uint64
	duplicate uint64
}

// ReordererStats reports packet accounting for monitoring.
type ReordererStats struct {
	Delivered uint64 `json:"delivered"`
	Lost      uint64 `json:"lost"`
	Duplicate uint64 `json:"duplicate"`
	Pending   int    `json:"pending"`
}

// NewReorderer creates a reorderer tolerating up to maxGap outstanding
// missing sequences before skipping them.
func NewReorderer(maxGap uint32) *Reorderer {
	if maxGap == 0 {
		maxGap = 20
	}
	return &Reorderer{
		pending: make(map[uint32][]byte),
		maxGap:  maxGap,
	}
}

// Push accepts one packet and returns every payload that is now deliverable
// in sequence order. Old or duplicate packets are dropped.
func (r *Reorderer) Push(seq uint32, payload []byte) [][]byte {
	if !r.started {
		r.started = true
		r.expected = seq
	}

	switch {
	case seq == r.expected:
		out := [][]byte{payload}
		r.expected++
		r.delivered++
		out = r.drainPending(out)
		return out

	case seqAfter(seq, r.expected):
		buf := make([]byte, len(payload))
		copy(buf, payload)
		r.pending[seq] = buf

		if seq-r.expected > r.maxGap {
			// Gap too large: give up on the missing sequences, flush whatever
			// arrived inside the gap in order, and resume from seq.
			var out [][]byte
			for s := r.expected; s != seq; s++ {
				if buffered, ok := r.pending[s]; ok {
					delete(r.pending, s)
					out = append(out, buffered)
					r.delivered++
				} else {
					r.lost++
				}
			}
			r.expected = seq
			return r.drainPending(out)
		}
		return nil

	default:
		r.duplicate++
		return nil
	}
}

// Stats returns current packet accounting.
func (r *Reorderer) Stats() ReordererStats {
	return ReordererStats{
		Delivered: r.delivered,
		Lost:      r.lost,
		Duplicate: r.duplicate,
		Pending:   len(r.pending),
	}
}

func (r *Reorderer) drainPending(out [][]byte) [][]byte {
	for {
		payload, ok := r.pending[r.expected]
		if !ok {
			return out
		}
		delete(r.pending, r.expected)
		out = append(out, payload)
		r.expected++
		r.delivered++
	}
}

// seqAfter reports whether a comes after b in wrap-around sequence order.
func seqAfter(a, b uint32) bool {
	return int32(a-b) > 0
}
