package audio

import "testing"

func TestNewDelayRingPrefill(t *testing.T) {
	r := NewDelayRing(4, 1024, 1)

	if r.Len() != 4 {
		t.Errorf("Expected occupancy 4 after prefill, got %d", r.Len())
	}
	if r.Target() != 4 {
		t.Errorf("Expected target 4, got %d", r.Target())
	}
}

func TestDelayRingPopExcessAtTarget(t *testing.T) {
	r := NewDelayRing(2, 8, 1)

	if got := r.PopExcess(); got != nil {
		t.Errorf("Expected no excess at target occupancy, got %d chunks", len(got))
	}
}

func TestDelayRingFIFOOrder(t *testing.T) {
	r := NewDelayRing(2, 4, 1)

	first := Chunk{Samples: []int16{1, 1, 1, 1}, Channels: 1}
	second := Chunk{Samples: []int16{2, 2, 2, 2}, Channels: 1}
	r.Push(first)
	r.Push(second)

	// Occupancy is now 4 against a target of 2; the two silence prefill
	// chunks must come out before anything pushed later.
	popped := r.PopExcess()
	if len(popped) != 2 {
		t.Fatalf("Expected 2 excess chunks, got %d", len(popped))
	}
	for i, c := range popped {
		if c.Samples[0] != 0 {
			t.Errorf("Chunk %d: expected prefill silence first, got %d", i, c.Samples[0])
		}
	}

	r.Push(Chunk{Samples: []int16{3, 3, 3, 3}, Channels: 1})
	popped = r.PopExcess()
	if len(popped) != 1 || popped[0].Samples[0] != 1 {
		t.Errorf("Expected the first pushed chunk next, got %+v", popped)
	}
}

func TestDelayRingTargetChangeDrifts(t *testing.T) {
	r := NewDelayRing(4, 4, 1)

	// Shrinking the target does not truncate; the next PopExcess drains
	// down to the new depth.
	r.SetTarget(2)
	if r.Len() != 4 {
		t.Errorf("Expected occupancy unchanged at 4, got %d", r.Len())
	}

	popped := r.PopExcess()
	if len(popped) != 2 {
		t.Errorf("Expected 2 chunks drained toward new target, got %d", len(popped))
	}
	if r.Len() != 2 {
		t.Errorf("Expected occupancy 2 after drain, got %d", r.Len())
	}

	// Growing the target makes the consumer wait while the producer
	// refills.
	r.SetTarget(5)
	if got := r.PopExcess(); got != nil {
		t.Errorf("Expected no excess below target, got %d chunks", len(got))
	}
}

func TestDelayRingClearEmpties(t *testing.T) {
	r := NewDelayRing(1, 4, 1)
	r.Push(Chunk{Samples: []int16{7, 7, 7, 7}, Channels: 1})

	r.Clear(false, 4, 1)

	if r.Len() != 0 {
		t.Errorf("Expected empty ring after clear, got %d", r.Len())
	}
	if got := r.PopExcess(); got != nil {
		t.Errorf("Expected nothing to pop after clear, got %d chunks", len(got))
	}
}

func TestDelayRingClearRefill(t *testing.T) {
	r := NewDelayRing(3, 4, 1)
	r.Push(Chunk{Samples: []int16{9, 9, 9, 9}, Channels: 1})

	r.Clear(true, 4, 1)

	if r.Len() != 3 {
		t.Errorf("Expected occupancy back at target 3, got %d", r.Len())
	}

	// Drain everything: only prefill silence may remain.
	r.SetTarget(1)
	for _, c := range r.PopExcess() {
		if c.Samples[0] != 0 {
			t.Errorf("Expected silence after refill, got %d", c.Samples[0])
		}
	}
}
