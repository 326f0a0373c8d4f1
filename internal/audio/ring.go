package audio

import "sync"

// DelayRing is a FIFO queue of chunks held at a target occupancy to impose
// a constant processing delay. It is shared between a producer and a
// consumer goroutine; all access is serialized by a single mutex. Chunks
// leave in exactly the order they entered.
type DelayRing struct {
	mu     sync.Mutex
	chunks []Chunk
	target int

	pushed uint64
	popped uint64
}

// NewDelayRing creates a ring with the given target depth, pre-filled with
// target silence chunks so the configured latency is present from the first
// consumed chunk instead of ramping up.
func NewDelayRing(target, frames, channels int) *DelayRing {
	if target < 1 {
		target = 1
	}

	r := &DelayRing{
		chunks: make([]Chunk, 0, target*2),
		target: target,
	}
	for i := 0; i < target; i++ {
		r.chunks = append(r.chunks, NewSilence(frames, channels))
	}

	return r
}

// Push appends a chunk to the tail of the ring.
func (r *DelayRing) Push(c Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chunks = append(r.chunks, c)
	r.pushed++
}

// PopExcess removes and returns, in FIFO order, every chunk above the
// current target depth. It returns nil when occupancy is at or below
// target, which is the consumer's signal to wait.
func (r *DelayRing) PopExcess() []Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()

	excess := len(r.chunks) - r.target
	if excess <= 0 {
		return nil
	}

	out := make([]Chunk, excess)
	copy(out, r.chunks[:excess])

	n := copy(r.chunks, r.chunks[excess:])
	r.chunks = r.chunks[:n]
	r.popped += uint64(excess)

	return out
}

// Len returns the current occupancy in chunks.
func (r *DelayRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Target returns the target depth in chunks.
func (r *DelayRing) Target() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// SetTarget updates the target depth. Occupancy is not truncated or
// padded; it drifts toward the new target over subsequent producer and
// consumer cycles, trading a brief latency transient for glitch-free
// audio.
func (r *DelayRing) SetTarget(target int) {
	if target < 1 {
		target = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
}

// Clear empties the ring, optionally refilling it with silence up to the
// target depth.
func (r *DelayRing) Clear(refill bool, frames, channels int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chunks = r.chunks[:0]
	if refill {
		for i := 0; i < r.target; i++ {
			r.chunks = append(r.chunks, NewSilence(frames, channels))
		}
	}
}
