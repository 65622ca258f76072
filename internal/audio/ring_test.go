package audio

import (
	"math"
	"testing"
)

func TestRingAppendAndTiming(t *testing.T) {
	ring := NewRing(16000, 60)

	ring.Append(make([]float32, 16000)) // 1s
	ring.Append(make([]float32, 8000))  // 0.5s

	if ring.Len() != 24000 {
		t.Errorf("Expected 24000 samples, got %d", ring.Len())
	}
	if ring.Offset() != 0 {
		t.Errorf("Expected zero offset before eviction, got %f", ring.Offset())
	}
	if math.Abs(ring.EndTime()-1.5) > 1e-9 {
		t.Errorf("Expected end time 1.5, got %f", ring.EndTime())
	}
}

func TestRingEviction(t *testing.T) {
	ring := NewRing(16000, 2)

	// 3 seconds into a 2-second cap: 1 second evicted.
	for i := 0; i < 3; i++ {
		ring.Append(make([]float32, 16000))
	}

	if ring.Len() != 32000 {
		t.Errorf("Expected 32000 samples after eviction, got %d", ring.Len())
	}
	if math.Abs(ring.Offset()-1.0) > 1e-9 {
		t.Errorf("Expected offset 1.0 after evicting one second, got %f", ring.Offset())
	}
	if math.Abs(ring.EndTime()-3.0) > 1e-9 {
		t.Errorf("Expected end time 3.0 unchanged by eviction, got %f", ring.EndTime())
	}
	if ring.Evicted() != 16000 {
		t.Errorf("Expected 16000 evicted samples, got %d", ring.Evicted())
	}
}

func TestRingTail(t *testing.T) {
	ring := NewRing(16000, 60)

	chunk := make([]float32, 16000)
	for i := range chunk {
		chunk[i] = float32(i)
	}
	ring.Append(chunk)

	tail := ring.Tail(0.25)
	if len(tail) != 4000 {
		t.Fatalf("Expected 4000 samples in 0.25s tail, got %d", len(tail))
	}
	if tail[len(tail)-1] != chunk[len(chunk)-1] {
		t.Error("Expected tail to end with the newest sample")
	}

	// Asking for more than buffered returns what is there.
	long := ring.Tail(10)
	if len(long) != 16000 {
		t.Errorf("Expected tail clamped to 16000 samples, got %d", len(long))
	}

	// Tail is a copy, not a view.
	tail[0] = -999
	again := ring.Tail(0.25)
	if again[0] == -999 {
		t.Error("Expected Tail to return an independent copy")
	}
}

func TestRingTailEmpty(t *testing.T) {
	ring := NewRing(16000, 60)

	if tail := ring.Tail(0.3); tail != nil {
		t.Errorf("Expected nil tail from empty ring, got %d samples", len(tail))
	}
}

func TestRingClear(t *testing.T) {
	ring := NewRing(16000, 60)

	ring.Append(make([]float32, 24000)) // 1.5s
	ring.Clear()

	if ring.Len() != 0 {
		t.Errorf("Expected empty ring after clear, got %d samples", ring.Len())
	}
	if math.Abs(ring.Offset()-1.5) > 1e-9 {
		t.Errorf("Expected offset to advance to 1.5 after clear, got %f", ring.Offset())
	}
	if math.Abs(ring.EndTime()-1.5) > 1e-9 {
		t.Errorf("Expected end time 1.5 after clear, got %f", ring.EndTime())
	}

	// Time keeps advancing from the cleared position.
	ring.Append(make([]float32, 8000))
	if math.Abs(ring.EndTime()-2.0) > 1e-9 {
		t.Errorf("Expected end time 2.0 after appending past clear, got %f", ring.EndTime())
	}
}
